package actions

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed selectors.yaml
var defaultSelectors []byte

// Selectors is the site markup the actions rely on. It is data, not logic:
// a file passed to LoadSelectors overrides individual entries of the
// embedded default.
type Selectors struct {
	BaseURL string `yaml:"baseUrl"`

	Page struct {
		Ready string `yaml:"ready"`
	} `yaml:"page"`

	Profile struct {
		Name        string `yaml:"name"`
		Headline    string `yaml:"headline"`
		Distance    string `yaml:"distance"`
		Connect     string `yaml:"connect"`
		Message     string `yaml:"message"`
		Pending     string `yaml:"pending"`
		More        string `yaml:"more"`
		MoreMenu    string `yaml:"moreMenu"`
		MoreConnect string `yaml:"moreConnect"`
		MoreMessage string `yaml:"moreMessage"`
		MorePending string `yaml:"morePending"`
	} `yaml:"profile"`

	Invite struct {
		Modal           string `yaml:"modal"`
		AddNote         string `yaml:"addNote"`
		Note            string `yaml:"note"`
		Send            string `yaml:"send"`
		SendWithoutNote string `yaml:"sendWithoutNote"`
		Dismiss         string `yaml:"dismiss"`
	} `yaml:"invite"`

	Message struct {
		Compose string `yaml:"compose"`
		Send    string `yaml:"send"`
		Thread  string `yaml:"thread"`
		Event   string `yaml:"event"`
		Close   string `yaml:"close"`
	} `yaml:"message"`

	Search struct {
		PeoplePath string `yaml:"peoplePath"`
		Result     string `yaml:"result"`
		Link       string `yaml:"link"`
		Name       string `yaml:"name"`
		Connect    string `yaml:"connect"`
		Next       string `yaml:"next"`
	} `yaml:"search"`

	Company struct {
		SearchPath string `yaml:"searchPath"`
		Link       string `yaml:"link"`
		PeoplePath string `yaml:"peoplePath"`
		Person     string `yaml:"person"`
		PersonLink string `yaml:"personLink"`
		PersonName string `yaml:"personName"`
		Connect    string `yaml:"connect"`
		ShowMore   string `yaml:"showMore"`
	} `yaml:"company"`

	Connections struct {
		Path       string `yaml:"path"`
		Card       string `yaml:"card"`
		Link       string `yaml:"link"`
		Name       string `yaml:"name"`
		Occupation string `yaml:"occupation"`
		ShowMore   string `yaml:"showMore"`
	} `yaml:"connections"`

	Posts struct {
		Path  string `yaml:"path"`
		Item  string `yaml:"item"`
		Text  string `yaml:"text"`
		Empty string `yaml:"empty"`
	} `yaml:"posts"`
}

// DefaultSelectors returns the embedded selector set.
func DefaultSelectors() Selectors {
	var s Selectors
	if err := yaml.Unmarshal(defaultSelectors, &s); err != nil {
		panic(fmt.Sprintf("embedded selectors.yaml: %v", err))
	}
	return s
}

// LoadSelectors reads path on top of the defaults. An empty path returns
// the defaults.
func LoadSelectors(path string) (Selectors, error) {
	s := DefaultSelectors()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read selectors: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse selectors %s: %w", path, err)
	}
	s.BaseURL = strings.TrimRight(s.BaseURL, "/")
	return s, nil
}
