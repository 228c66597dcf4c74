/*
Package processor implements the signed external-redirect protocol for the
payment processor.

PURPOSE:
  Two halves of one round trip: signer.go builds the signed URL that hands a
  participant off to the processor, ingest.go records the callback the
  processor sends back. Neither half ever calls the processor directly;
  the outbound leg is a browser redirect and the inbound leg is the
  processor calling us.

CREDENTIALS:
  Two credential sets (development and production) plus a deployment-mode
  switch. The switch lives in configuration, not business logic, but there
  is exactly one decision point (CredentialSet.Select) so tests can pin the
  outcome. Signing with an empty key is a fatal configuration error, never
  a silently invalid URL.

SEE ALSO:
  - signer.go: outbound URL construction
  - ingest.go: inbound callback recording
  - config/config.go: where the values come from
*/
package processor

import "errors"

// ErrMissingCredentials is returned when the credential set selected for
// the current mode has no key or endpoint. The redirect cannot be safely
// built; this is fatal configuration, not a user error.
var ErrMissingCredentials = errors.New("payment processor credentials missing for selected mode")

// Mode is the deployment mode driving credential selection.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeStaging     Mode = "staging"
	ModeProduction  Mode = "production"
)

// Credentials is one processor key and endpoint pair.
type Credentials struct {
	Key     string
	BaseURL string
}

// CredentialSet holds both credential pairs and everything else the signed
// request carries that is configuration rather than per-payment data.
type CredentialSet struct {
	Mode Mode

	// ServiceSelector forces the development credentials when set to "QA",
	// regardless of mode. Mirrors the processor's QA routing switch.
	ServiceSelector string

	Development Credentials
	Production  Credentials

	OrderType        string
	OrderDescription string

	// CallbackURL is where the processor sends the participant (and the
	// callback fields) after payment.
	CallbackURL string

	RetriesAllowed int
}

// Select returns the credentials for the current mode. Development and
// staging deployments, and any deployment with the QA selector, use the
// development set; everything else uses production.
func (cs CredentialSet) Select() (Credentials, error) {
	creds := cs.Production
	if cs.Mode == ModeDevelopment || cs.Mode == ModeStaging || cs.ServiceSelector == "QA" {
		creds = cs.Development
	}
	if creds.Key == "" || creds.BaseURL == "" {
		return Credentials{}, ErrMissingCredentials
	}
	return creds, nil
}
