package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mspro-labs/office-cart/internal/ai"
	"mspro-labs/office-cart/internal/embedder"
	"mspro-labs/office-cart/internal/models"
	"mspro-labs/office-cart/internal/workflow"
)

var (
	flagUser     string
	flagPassword string
	flagState    string
	flagCenter   string
	flagProduct  string
	flagQuantity int
	flagNoEmbed  bool
)

var centersCmd = &cobra.Command{
	Use:   "centers",
	Short: "List the distribution centers of a state",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		database := openDB()
		defer database.Close()

		centers := newService(database).Centers(ctx, credentials(), flagState)
		printJSON(map[string][]string{"centers": centers})
	},
}

var selectCenterCmd = &cobra.Command{
	Use:   "select-center",
	Short: "Check that a center can be selected in a state",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		database := openDB()
		defer database.Close()

		ok := newService(database).SelectCenter(ctx, credentials(), flagState, flagCenter)
		printJSON(map[string]bool{"selected": ok})
		if !ok {
			_ = closeLog()
			os.Exit(1)
		}
	},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search a center's store, adding to the cart when exactly one product matches",
	Example: `  office-cart search --state "São Paulo" --center "Ozonteck Praia Grande - SP" --product "omega 3" --quantity 2`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		database := openDB()
		defer database.Close()

		result, err := newService(database).Search(ctx, credentials(), flagState, flagCenter, flagProduct, flagQuantity)
		if errors.Is(err, workflow.ErrCenterNotFound) {
			fatal("Center not found", fmt.Errorf("%q in %s", flagCenter, flagState))
		}
		printJSON(result)
	},
}

var buyCmd = &cobra.Command{
	Use:   "buy",
	Short: "Check out the cart, paying with the account balance",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		database := openDB()
		defer database.Close()

		if !newService(database).Buy(ctx, credentials()) {
			printJSON(map[string]any{"message": "failed", "status": 400})
			_ = closeLog()
			os.Exit(1)
		}
		printJSON(map[string]any{"message": "success", "status": 200})
	},
}

// productsCmd refreshes the cached catalog for one center and embeds new finds.
var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List every product of a center and refresh the local catalog",
	Long: `Logs in, selects the center, lists its whole store and saves it to the local catalog.
Products that are no longer listed are marked inactive. When GEMINI_API_KEY is set,
new or changed products are embedded for semantic search.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		database := openDB()
		defer database.Close()

		products, err := newService(database).Products(ctx, credentials(), flagState, flagCenter)
		if errors.Is(err, workflow.ErrCenterNotFound) {
			fatal("Center not found", fmt.Errorf("%q in %s", flagCenter, flagState))
		}
		printJSON(map[string][]models.Product{"products": products})

		if flagNoEmbed || len(products) == 0 || os.Getenv("GEMINI_API_KEY") == "" {
			return
		}
		client, err := ai.NewClient(ctx)
		if err != nil {
			fatal("Failed to initialize AI client", err)
		}
		defer client.Close()
		if _, err := embedder.Run(ctx, database, client); err != nil {
			fatal("Embedding process failed", err)
		}
	},
}

func credentials() models.Credentials {
	creds, err := resolveCredentials(flagUser, flagPassword)
	if err != nil {
		fatal("Missing credentials", err)
	}
	return creds
}

// resolveCredentials falls back to PORTAL_USERNAME and PORTAL_PASSWORD. It
// must run after setup so values from .env are visible.
func resolveCredentials(user, password string) (models.Credentials, error) {
	if user == "" {
		user = os.Getenv("PORTAL_USERNAME")
	}
	if password == "" {
		password = os.Getenv("PORTAL_PASSWORD")
	}
	if user == "" || password == "" {
		return models.Credentials{}, errors.New("--user and --password (or PORTAL_USERNAME and PORTAL_PASSWORD) are required")
	}
	return models.Credentials{Username: user, Password: password}, nil
}

func addCredentialFlags(c *cobra.Command) {
	c.Flags().StringVarP(&flagUser, "user", "u", "", "portal login e-mail (default $PORTAL_USERNAME)")
	c.Flags().StringVarP(&flagPassword, "password", "p", "", "portal password (default $PORTAL_PASSWORD)")
}

func addCenterFlags(c *cobra.Command, withCenter bool) {
	c.Flags().StringVarP(&flagState, "state", "s", "", "state name as the portal spells it, e.g. \"São Paulo\"")
	c.MarkFlagRequired("state")
	if withCenter {
		c.Flags().StringVarP(&flagCenter, "center", "c", "", "center name as listed by the centers command")
		c.MarkFlagRequired("center")
	}
}

func init() {
	for _, c := range []*cobra.Command{centersCmd, selectCenterCmd, searchCmd, buyCmd, productsCmd} {
		addCredentialFlags(c)
		rootCmd.AddCommand(c)
	}
	addCenterFlags(centersCmd, false)
	addCenterFlags(selectCenterCmd, true)
	addCenterFlags(searchCmd, true)
	addCenterFlags(productsCmd, true)

	searchCmd.Flags().StringVar(&flagProduct, "product", "", "search text")
	searchCmd.MarkFlagRequired("product")
	searchCmd.Flags().IntVarP(&flagQuantity, "quantity", "q", 0, "quantity to add when exactly one product matches")

	productsCmd.Flags().BoolVar(&flagNoEmbed, "no-embed", false, "skip embedding new products")
}
