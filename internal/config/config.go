package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig holds infrastructure config from standard env vars
type AppConfig struct {
	DBPath     string
	ConfigPath string // Path to the YAML site config
	ListenAddr string
	DataDir    string // Parent of the per-user browser profiles
	LogLevel   string
	LogFile    string
}

// SiteConfig holds all portal specific settings (from YAML)
type SiteConfig struct {
	BaseURL      string        `yaml:"base_url"`
	UserAgent    string        `yaml:"user_agent"`
	Headless     bool          `yaml:"headless"`
	StepTimeout  time.Duration `yaml:"step_timeout"`
	ModalTimeout time.Duration `yaml:"modal_timeout"`
	LoginTimeout time.Duration `yaml:"login_timeout"`
	Selectors    Selectors     `yaml:"selectors"`
}

// Selectors are matched against the portal markup. Fields ending in X are XPath.
type Selectors struct {
	Email           string `yaml:"email"`
	Password        string `yaml:"password"`
	Submit          string `yaml:"submit"`
	Modal           string `yaml:"modal"`
	StateSelect     string `yaml:"state_select"`
	CenterName      string `yaml:"center_name"`
	Card            string `yaml:"card"`
	SelectButton    string `yaml:"select_button"`
	ProductName     string `yaml:"product_name"`
	ProductDesc     string `yaml:"product_description"`
	ProductPrice    string `yaml:"product_price"`
	PriceMarker     string `yaml:"price_marker"`
	QuantityInput   string `yaml:"quantity_input"`
	AddToCartX      string `yaml:"add_to_cart_x"`
	AddressX        string `yaml:"address_x"`
	ToPaymentX      string `yaml:"to_payment_x"`
	PayWithBalance  string `yaml:"pay_with_balance"`
	ConfirmPayment  string `yaml:"confirm_payment"`
	CloseModalsEval string `yaml:"close_modals_eval"`
}

// DefaultSiteConfig matches the portal markup as of the last check.
func DefaultSiteConfig() *SiteConfig {
	return &SiteConfig{
		BaseURL:      "https://office.grupoozonteck.com/",
		UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		Headless:     true,
		StepTimeout:  30 * time.Second,
		ModalTimeout: 10 * time.Second,
		LoginTimeout: 60 * time.Second,
		Selectors: Selectors{
			Email:           `input[type="email"]`,
			Password:        `input[type="password"]`,
			Submit:          `button[type="submit"]`,
			Modal:           ".modal-content",
			StateSelect:     `select[id="state_id_store"]`,
			CenterName:      `strong[class="mb-1"]`,
			Card:            `div[class="card-body"]`,
			SelectButton:    "Selecionar",
			ProductName:     `span[class="fw-bold mb-sm-2"]`,
			ProductDesc:     `p[class="card-text"]`,
			ProductPrice:    "strong",
			PriceMarker:     "R$",
			QuantityInput:   `input[type="text"]`,
			AddToCartX:      `//button[contains(@class,"button-cart")]`,
			AddressX:        `//span[contains(text(),"endereço")]`,
			ToPaymentX:      `//button[@type="submit" and contains(text(),"pagamento")]`,
			PayWithBalance:  "#pay-with-balance",
			ConfirmPayment:  "#confirm-payment",
			CloseModalsEval: `() => { closeModal("modal-updateAddress"); $("#modal-message").remove(); }`,
		},
	}
}

// GetAppConfig reads basic infrastructure settings from environment variables.
// A .env file in the working directory is loaded first when present.
func GetAppConfig() (AppConfig, error) {
	_ = godotenv.Load()

	cfg := AppConfig{
		DBPath:     getEnv("DB_PATH", "./local-data/office-cart.db"),
		ConfigPath: getEnv("CONFIG_PATH", "config.yaml"),
		ListenAddr: getEnv("LISTEN_ADDR", ":8000"),
		DataDir:    getEnv("DATA_DIR", "./data"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFile:    os.Getenv("LOG_FILE"),
	}
	return cfg, nil
}

// LoadSiteConfig reads the YAML file over the defaults.
// A missing file is not an error: the defaults are returned.
func LoadSiteConfig(path string) (*SiteConfig, error) {
	cfg := DefaultSiteConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file at '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base_url must not be empty")
	}
	if cfg.BaseURL[len(cfg.BaseURL)-1] != '/' {
		cfg.BaseURL += "/"
	}
	return cfg, nil
}

func getEnv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
