// Package sites holds the static descriptors of login targets and the
// session-verification logic that decides whether a stored login persisted.
package sites

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Descriptor is the static configuration for one login target.
type Descriptor struct {
	Name             string `yaml:"-"`
	LoginURL         string `yaml:"login_url"`
	CheckURL         string `yaml:"check_url"`
	SuccessIndicator string `yaml:"success_indicator"`
}

// builtin is the default site set. Indicators are matched against the
// host+path of the post-check URL, never the query string.
var builtin = map[string]Descriptor{
	"google": {
		LoginURL:         "https://accounts.google.com/",
		CheckURL:         "https://mail.google.com/",
		SuccessIndicator: "mail.google.com/mail",
	},
	"amazon": {
		LoginURL:         "https://www.amazon.fr/ap/signin",
		CheckURL:         "https://www.amazon.fr/gp/css/homepage.html",
		SuccessIndicator: "amazon.fr",
	},
	"notion": {
		LoginURL:         "https://www.notion.so/login",
		CheckURL:         "https://www.notion.so/",
		SuccessIndicator: "notion.so",
	},
	"homeexchange": {
		LoginURL:         "https://www.homeexchange.fr/login",
		CheckURL:         "https://www.homeexchange.fr/user/favorite",
		SuccessIndicator: "homeexchange.fr/user",
	},
	"github": {
		LoginURL:         "https://github.com/login",
		CheckURL:         "https://github.com/settings/profile",
		SuccessIndicator: "github.com/settings",
	},
}

// Registry resolves site names to descriptors.
type Registry struct {
	sites map[string]Descriptor
}

// NewRegistry returns a registry holding the builtin sites.
func NewRegistry() *Registry {
	r := &Registry{sites: make(map[string]Descriptor, len(builtin))}
	for name, d := range builtin {
		d.Name = name
		r.sites[name] = d
	}
	return r
}

// sitesFile is the YAML shape of a user-provided site list.
type sitesFile struct {
	Sites map[string]Descriptor `yaml:"sites"`
}

// LoadFile merges sites from a YAML file into the registry. Entries with
// names matching builtin sites replace them.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read sites file: %w", err)
	}

	var file sitesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse sites file %s: %w", path, err)
	}

	for name, d := range file.Sites {
		if d.LoginURL == "" || d.CheckURL == "" || d.SuccessIndicator == "" {
			return fmt.Errorf("site %q: login_url, check_url and success_indicator are all required", name)
		}
		d.Name = name
		r.sites[name] = d
	}
	return nil
}

// Get returns the descriptor for name, or false if unknown.
func (r *Registry) Get(name string) (Descriptor, bool) {
	d, ok := r.sites[name]
	return d, ok
}

// Names returns all known site names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sites))
	for name := range r.sites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
