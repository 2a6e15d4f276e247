package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"mspro-labs/office-cart/internal/models"
)

type userRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r userRequest) credentials() models.Credentials {
	return models.Credentials{Username: r.Username, Password: r.Password}
}

func (r userRequest) validate() error {
	return required(map[string]string{"username": r.Username, "password": r.Password})
}

type centersRequest struct {
	userRequest
	State string `json:"state"`
}

func (r centersRequest) validate() error {
	if err := r.userRequest.validate(); err != nil {
		return err
	}
	return required(map[string]string{"state": r.State})
}

type productsRequest struct {
	centersRequest
	Center string `json:"center"`
}

func (r productsRequest) validate() error {
	if err := r.centersRequest.validate(); err != nil {
		return err
	}
	return required(map[string]string{"center": r.Center})
}

type searchRequest struct {
	productsRequest
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

func (r searchRequest) validate() error {
	if err := r.productsRequest.validate(); err != nil {
		return err
	}
	// Quantity is optional; zero or negative only searches.
	return required(map[string]string{"product": r.Product})
}

type validator interface {
	validate() error
}

// decode reads a JSON body into v and validates it.
func decode(r *http.Request, v validator) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return v.validate()
}

// required reports every blank field, sorted by name.
func required(fields map[string]string) error {
	var missing []string
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return fmt.Errorf("missing required field: %s", strings.Join(missing, ", "))
}
