// Package models holds the domain types shared across workflows, providers,
// persistence, and the HTTP layer.
package models

import "time"

// WorkflowKind identifies which pipeline produced a run.
type WorkflowKind string

const (
	KindDomainSite      WorkflowKind = "domain_site"
	KindOnboardingCopy  WorkflowKind = "onboarding_copy"
	KindOnboardingVoice WorkflowKind = "onboarding_voice"
)

// StepRecord is one attempted pipeline stage. Within a run, step ids appear
// in canonical order; a run that fails at step K has no record after K.
type StepRecord struct {
	Step    string         `json:"step"`
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// WorkflowRun is the transient record of a single workflow execution. It is
// owned by the originating caller and never persisted.
type WorkflowRun struct {
	ID        string       `json:"id"`
	Kind      WorkflowKind `json:"kind"`
	Steps     []StepRecord `json:"steps"`
	Result    any          `json:"result,omitempty"`
	Error     string       `json:"error,omitempty"`
	Success   bool         `json:"success"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   time.Time    `json:"ended_at"`
}

// RegistrantContact is the contact record used for domain registration.
// The same record populates all four registrar roles.
type RegistrantContact struct {
	FirstName     string `json:"firstName" validate:"required"`
	LastName      string `json:"lastName" validate:"required"`
	Address1      string `json:"address1" validate:"required"`
	City          string `json:"city" validate:"required"`
	StateProvince string `json:"stateProvince" validate:"required"`
	PostalCode    string `json:"postalCode" validate:"required"`
	Country       string `json:"country" validate:"required"`
	Phone         string `json:"phone" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	Organization  string `json:"organization,omitempty"`
}

// DomainSiteParams are the inputs for the domain+site provisioning workflow.
type DomainSiteParams struct {
	Domain            string             `json:"domain" validate:"required,fqdn"`
	RegisterNewDomain bool               `json:"registerNewDomain"`
	IncludeWww        *bool              `json:"includeWww,omitempty"`
	SiteName          string             `json:"siteName,omitempty"`
	Years             int                `json:"years,omitempty"`
	Contacts          *RegistrantContact `json:"contacts,omitempty"`
	Deployment        *DeploymentContext `json:"deployment,omitempty"`
	Content           *ContentContext    `json:"content,omitempty"`
}

// WwwIncluded resolves the IncludeWww option, defaulting to true.
func (p DomainSiteParams) WwwIncluded() bool {
	if p.IncludeWww == nil {
		return true
	}
	return *p.IncludeWww
}

// RegistrationYears resolves the Years option, defaulting to 1.
func (p DomainSiteParams) RegistrationYears() int {
	if p.Years <= 0 {
		return 1
	}
	return p.Years
}

// ProvisionedSite carries the host's identifiers and WP credentials for a
// freshly created site.
type ProvisionedSite struct {
	ID         string `json:"id"`
	WpURL      string `json:"wp_url"`
	WpUsername string `json:"wp_username"`
	WpPassword string `json:"wp_password"`
}

// FinalURLs are the caller-facing URLs once provisioning completes.
type FinalURLs struct {
	Site  string `json:"site"`
	Admin string `json:"admin"`
}

// NameserverInstructions is surfaced when the workflow did not register the
// domain itself and the operator must update delegation manually.
type NameserverInstructions struct {
	Nameservers        []string `json:"nameservers"`
	Message            string   `json:"message,omitempty"`
	CurrentNameservers []string `json:"currentNameservers,omitempty"`
}

// SSLStatus reports the host's certificate state for a site.
type SSLStatus struct {
	Enabled bool   `json:"enabled"`
	Status  string `json:"status"`
}

// DomainSiteResult is the terminal result of a successful (or partially
// successful) domain+site run.
type DomainSiteResult struct {
	Domain                 string                  `json:"domain"`
	Registered             bool                    `json:"registered"`
	ChargedAmount          string                  `json:"chargedAmount,omitempty"`
	Site                   *ProvisionedSite        `json:"site,omitempty"`
	ZoneID                 string                  `json:"zoneId,omitempty"`
	Nameservers            []string                `json:"nameservers,omitempty"`
	NameserverInstructions *NameserverInstructions `json:"nameserverInstructions,omitempty"`
	SSL                    *SSLStatus              `json:"ssl,omitempty"`
	FinalURLs              FinalURLs               `json:"finalUrls"`
	Apply                  *ApplyResult            `json:"apply,omitempty"`
}

// SiteCredentials identifies a provisioned site's REST surface.
type SiteCredentials struct {
	BaseURL  string `json:"baseUrl" validate:"required,url"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// StepOutcome is one applicator subtask result. Failures accumulate instead
// of aborting the batch.
type StepOutcome struct {
	Task    string `json:"task"`
	Success bool   `json:"success"`
	Detail  string `json:"detail,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ApplyResult is the deployment applicator's terminal report.
type ApplyResult struct {
	Success     bool           `json:"success"`
	Outcomes    []StepOutcome  `json:"outcomes"`
	PageIDs     map[string]int `json:"pageIds,omitempty"`
	FrontPageID int            `json:"frontPageId,omitempty"`
}

// TemplateMatch is the onboarding template selection outcome.
type TemplateMatch struct {
	Slug       string  `json:"slug"`
	Skin       string  `json:"skin,omitempty"`
	Variation  string  `json:"variation,omitempty"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// OnboardingResult is the terminal result of an onboarding run (COPY or
// VOICE variant).
type OnboardingResult struct {
	Variant       string             `json:"variant"`
	TemplateMatch TemplateMatch      `json:"templateMatch"`
	Deployment    *DeploymentContext `json:"deploymentContext,omitempty"`
	Content       *ContentContext    `json:"contentContext,omitempty"`
	Steps         []StepRecord       `json:"steps"`
}
