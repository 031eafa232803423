package vmware

import (
	"errors"
	"fmt"

	"github.com/carverauto/vmready/pkg/models"
)

var errUnknownCredential = errors.New("unknown credential reference")

// CredentialStore resolves a VM's credential reference to a guest login.
type CredentialStore interface {
	Credential(ref string) (models.Credential, error)
}

// StaticCredentials serves logins straight from config.
type StaticCredentials struct {
	def   models.Credential
	named map[string]models.Credential
}

func NewStaticCredentials(cfg CredentialsConfig) *StaticCredentials {
	return &StaticCredentials{def: cfg.Default, named: cfg.Named}
}

// Credential returns the default login for an empty ref. Named logins
// without a username inherit the default one.
func (s *StaticCredentials) Credential(ref string) (models.Credential, error) {
	if ref == "" {
		return s.def, nil
	}

	c, ok := s.named[ref]
	if !ok {
		return models.Credential{}, fmt.Errorf("%w: %s", errUnknownCredential, ref)
	}

	if c.Username == "" {
		c.Username = s.def.Username
	}

	return c, nil
}
