// Package workflow drives the domain+site provisioning pipeline: a
// linear sequence of provider calls that registers the domain when
// asked, creates and waits for the hosted site, wires DNS through
// Cloudflare, and optionally applies deployment and content contexts.
//
// Fatal failures stop the pipeline without rolling anything back;
// registrar charges are not refundable, so recovery is operator-driven.
// Content steps are soft: their failures are recorded in-line and the
// run still completes.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MisreadableMind/word-to-site-ai/pkg/deploy"
	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
	"github.com/MisreadableMind/word-to-site-ai/pkg/progress"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers/cloudflare"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers/instawp"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers/namecheap"
)

// Registrar is the registrar surface the pipeline drives.
type Registrar interface {
	Check(ctx context.Context, domain string) (*namecheap.CheckResult, error)
	Register(ctx context.Context, domain string, years int, contact models.RegistrantContact) (*namecheap.RegisterResult, error)
	SetCustomNameservers(ctx context.Context, domain string, nameservers []string) error
}

// DNS is the zone and record surface the pipeline drives.
type DNS interface {
	GetOrCreateZone(ctx context.Context, domain string) (*cloudflare.Zone, error)
	SetARecords(ctx context.Context, zoneID, name string, ips []string, includeWww bool) error
	ConfigureSecurity(ctx context.Context, zoneID string) error
}

// Host is the site hosting surface the pipeline drives.
type Host interface {
	CreateSite(ctx context.Context, opts instawp.CreateSiteOptions) (*models.ProvisionedSite, error)
	WaitUntilReady(ctx context.Context, siteID string, budget, interval time.Duration) (*models.ProvisionedSite, error)
	MapDomain(ctx context.Context, siteID, domain string, opts instawp.MapDomainOptions) ([]string, error)
	CheckSSLStatus(ctx context.Context, siteID string) (*models.SSLStatus, error)
}

// SiteClientFunc builds the REST client for a freshly provisioned site.
type SiteClientFunc func(creds models.SiteCredentials) deploy.SiteAPI

// NSProbe reports a domain's live NS delegation. Probe failures are
// advisory only.
type NSProbe interface {
	Lookup(ctx context.Context, domain string) ([]string, error)
}

// DomainSite runs the provisioning pipeline. One instance serves many
// concurrent runs; all per-run state lives in the Run call.
type DomainSite struct {
	registrar  Registrar
	dns        DNS
	host       Host
	applicator *deploy.Applicator
	siteClient SiteClientFunc
	nsProbe    NSProbe
}

// NewDomainSite wires the pipeline. registrar may be nil when domain
// registration is not offered; applicator may be nil when content
// application is not offered.
func NewDomainSite(registrar Registrar, dns DNS, host Host, applicator *deploy.Applicator) *DomainSite {
	return &DomainSite{
		registrar:  registrar,
		dns:        dns,
		host:       host,
		applicator: applicator,
		siteClient: func(creds models.SiteCredentials) deploy.SiteAPI {
			return deploy.NewClient(creds)
		},
	}
}

// WithSiteClient replaces the site REST client factory. Tests use it to
// point the applicator at a fake site.
func (w *DomainSite) WithSiteClient(fn SiteClientFunc) *DomainSite {
	w.siteClient = fn
	return w
}

// WithNSProbe adds a delegation probe so nameserver instructions can show
// where the domain currently points.
func (w *DomainSite) WithNSProbe(probe NSProbe) *DomainSite {
	w.nsProbe = probe
	return w
}

// run accumulates per-run state: the record list, the result under
// construction, and the sink.
type run struct {
	*models.WorkflowRun
	sink   progress.Sink
	result *models.DomainSiteResult
}

func (r *run) emit(stage, message string, payload map[string]any) {
	r.sink.Emit(progress.NewEvent(stage, message, payload))
}

// record appends a StepRecord. Soft failures pass success=false; fatal
// failures never reach record for the failing step.
func (r *run) record(step string, success bool, data map[string]any, stepErr error) {
	rec := models.StepRecord{Step: step, Success: success, Data: data}
	if stepErr != nil {
		rec.Error = stepErr.Error()
	}
	r.Steps = append(r.Steps, rec)
}

// fail closes the run with a terminal error.
func (r *run) fail(message string) *models.WorkflowRun {
	r.Error = message
	r.Success = false
	r.EndedAt = time.Now().UTC()
	r.emit(progress.StageError, message, nil)
	slog.Error("Provisioning run failed",
		"run_id", r.ID,
		"domain", r.result.Domain,
		"error", message)
	return r.WorkflowRun
}

// cancelled records the terminal cancelled step when the caller's
// context has been cut.
func (r *run) cancelled(ctx context.Context) *models.WorkflowRun {
	r.record(progress.StepCancelled, false, nil, ctx.Err())
	r.Error = "cancelled: " + ctx.Err().Error()
	r.Success = false
	r.EndedAt = time.Now().UTC()
	r.emit(progress.StageCancelled, r.Error, nil)
	slog.Warn("Provisioning run cancelled",
		"run_id", r.ID,
		"domain", r.result.Domain)
	return r.WorkflowRun
}

// Run executes the pipeline. The returned WorkflowRun is the only
// terminal outcome channel; the sink only carries progress.
func (w *DomainSite) Run(ctx context.Context, params models.DomainSiteParams, sink progress.Sink) *models.WorkflowRun {
	if sink == nil {
		sink = progress.NopSink{}
	}
	r := &run{
		WorkflowRun: &models.WorkflowRun{
			ID:        uuid.NewString(),
			Kind:      models.KindDomainSite,
			StartedAt: time.Now().UTC(),
		},
		sink:   sink,
		result: &models.DomainSiteResult{Domain: params.Domain},
	}
	slog.Info("Provisioning run started",
		"run_id", r.ID,
		"domain", params.Domain,
		"register", params.RegisterNewDomain)

	// 1. Validate the request before touching any provider.
	r.emit(progress.StageValidatingConfig, "Validating configuration", nil)
	if err := w.validate(params); err != nil {
		return r.fail(err.Error())
	}
	r.record(progress.StepConfigValidated, true, nil, nil)

	// 2. Conditional registration arc.
	if params.RegisterNewDomain {
		if done := w.registerDomain(ctx, r, params); done != nil {
			return done
		}
	}
	if ctx.Err() != nil {
		return r.cancelled(ctx)
	}

	// 3. Create the hosted site and wait for it to serve.
	site, done := w.provisionSite(ctx, r, params)
	if done != nil {
		return done
	}
	r.result.Site = site

	// 4. Map the domain and wire DNS.
	if done := w.wireDomain(ctx, r, params, site); done != nil {
		return done
	}

	// 5. Optional deployment and content application, soft-failed.
	if params.Deployment != nil || params.Content != nil {
		w.applyContexts(ctx, r, params, site)
	}

	r.result.FinalURLs = models.FinalURLs{
		Site:  "https://" + params.Domain,
		Admin: "https://" + params.Domain + "/wp-admin",
	}
	r.Result = r.result
	r.Success = true
	r.EndedAt = time.Now().UTC()
	r.emit(progress.StageComplete, "Provisioning complete", map[string]any{
		"site": r.result.FinalURLs.Site,
	})
	slog.Info("Provisioning run complete",
		"run_id", r.ID,
		"domain", params.Domain,
		"steps", len(r.Steps))
	return r.WorkflowRun
}

// validate enforces the request invariants: a plausible domain, and a
// complete contact record when registration is requested.
func (w *DomainSite) validate(params models.DomainSiteParams) error {
	if err := models.ValidateStruct(&params); err != nil {
		return err
	}
	if params.RegisterNewDomain {
		if w.registrar == nil {
			return fmt.Errorf("domain registration is not configured")
		}
		if params.Contacts == nil {
			return models.NewValidationError("contacts", "contact record is required to register a domain")
		}
		if err := models.ValidateStruct(params.Contacts); err != nil {
			return err
		}
	}
	return nil
}

// registerDomain covers checking_domain and registering_domain. Both
// are fatal on failure. Returns a non-nil run to stop the pipeline.
func (w *DomainSite) registerDomain(ctx context.Context, r *run, params models.DomainSiteParams) *models.WorkflowRun {
	if ctx.Err() != nil {
		return r.cancelled(ctx)
	}
	r.emit(progress.StageCheckingDomain, "Checking domain availability", map[string]any{
		"domain": params.Domain,
	})

	var check *namecheap.CheckResult
	err := providers.Retry(ctx, "registrar.check", func() error {
		var cerr error
		check, cerr = w.registrar.Check(ctx, params.Domain)
		return cerr
	})
	if err != nil {
		return r.fail(fmt.Sprintf("Domain availability check failed: %v", err))
	}
	if !check.Available {
		return r.fail(fmt.Sprintf("Domain %s is not available", params.Domain))
	}
	data := map[string]any{"available": true}
	if check.Premium {
		data["premium"] = true
		data["premiumPrice"] = check.PremiumPrice
	}
	r.record(progress.StepDomainChecked, true, data, nil)

	if ctx.Err() != nil {
		return r.cancelled(ctx)
	}
	r.emit(progress.StageRegisteringDomain, "Registering domain", map[string]any{
		"domain": params.Domain,
		"years":  params.RegistrationYears(),
	})

	// Registration is never retried: a timed-out attempt may still
	// have charged the account.
	registered, err := w.registrar.Register(ctx, params.Domain, params.RegistrationYears(), *params.Contacts)
	if err != nil {
		return r.fail(fmt.Sprintf("Domain registration failed: %v", err))
	}
	r.result.Registered = true
	r.result.ChargedAmount = fmt.Sprintf("%.2f", registered.ChargedAmount)
	r.record(progress.StepDomainRegistered, true, map[string]any{
		"chargedAmount": registered.ChargedAmount,
		"orderId":       registered.OrderID,
	}, nil)
	return nil
}

// provisionSite covers creating_site and waiting_for_site.
func (w *DomainSite) provisionSite(ctx context.Context, r *run, params models.DomainSiteParams) (*models.ProvisionedSite, *models.WorkflowRun) {
	if ctx.Err() != nil {
		return nil, r.cancelled(ctx)
	}

	siteName := params.SiteName
	if siteName == "" {
		siteName = strings.ReplaceAll(params.Domain, ".", "-")
	}
	r.emit(progress.StageCreatingSite, "Creating site", map[string]any{"siteName": siteName})

	site, err := w.host.CreateSite(ctx, instawp.CreateSiteOptions{SiteName: siteName})
	if err != nil {
		return nil, r.fail(fmt.Sprintf("Site creation failed: %v", err))
	}
	r.record(progress.StepSiteCreated, true, map[string]any{
		"siteId": site.ID,
		"wpUrl":  site.WpURL,
	}, nil)

	if ctx.Err() != nil {
		return nil, r.cancelled(ctx)
	}
	r.emit(progress.StageWaitingForSite, "Waiting for site to come online", map[string]any{
		"siteId": site.ID,
	})

	ready, err := w.host.WaitUntilReady(ctx, site.ID, instawp.DefaultReadyBudget, instawp.DefaultPollInterval)
	if err != nil {
		if ctx.Err() != nil {
			return nil, r.cancelled(ctx)
		}
		return nil, r.fail(fmt.Sprintf("Site did not become ready: %v", err))
	}
	// The readiness payload may carry fresher credentials.
	if ready.WpURL != "" {
		site = ready
	}
	r.record(progress.StepSiteReady, true, nil, nil)
	return site, nil
}

// wireDomain covers mapping_domain through the SSL status record.
func (w *DomainSite) wireDomain(ctx context.Context, r *run, params models.DomainSiteParams, site *models.ProvisionedSite) *models.WorkflowRun {
	if ctx.Err() != nil {
		return r.cancelled(ctx)
	}
	r.emit(progress.StageMappingDomain, "Mapping domain to site", map[string]any{
		"domain": params.Domain,
	})

	var ips []string
	err := providers.Retry(ctx, "host.mapDomain", func() error {
		var merr error
		ips, merr = w.host.MapDomain(ctx, site.ID, params.Domain, instawp.MapDomainOptions{
			Www:      params.WwwIncluded(),
			RouteWww: params.WwwIncluded(),
		})
		return merr
	})
	if err != nil {
		return r.fail(fmt.Sprintf("Domain mapping failed: %v", err))
	}
	r.record(progress.StepDomainMapped, true, map[string]any{"aRecords": ips}, nil)

	// The host must hand back at least one A-record IP; without it the
	// DNS records cannot be written.
	if len(ips) == 0 {
		return r.fail("Failed to get A record IPs")
	}

	if ctx.Err() != nil {
		return r.cancelled(ctx)
	}
	r.emit(progress.StageCreatingZone, "Creating DNS zone", map[string]any{"domain": params.Domain})

	var zone *cloudflare.Zone
	err = providers.Retry(ctx, "dns.getOrCreateZone", func() error {
		var zerr error
		zone, zerr = w.dns.GetOrCreateZone(ctx, params.Domain)
		return zerr
	})
	if err != nil {
		return r.fail(fmt.Sprintf("Zone creation failed: %v", err))
	}
	r.result.ZoneID = zone.ID
	r.result.Nameservers = zone.Nameservers
	r.record(progress.StepZoneCreated, true, map[string]any{
		"zoneId":      zone.ID,
		"nameservers": zone.Nameservers,
	}, nil)

	if ctx.Err() != nil {
		return r.cancelled(ctx)
	}
	r.emit(progress.StageSettingDNSRecords, "Setting DNS records", map[string]any{
		"aRecords":   ips,
		"includeWww": params.WwwIncluded(),
	})

	err = providers.Retry(ctx, "dns.setARecords", func() error {
		return w.dns.SetARecords(ctx, zone.ID, params.Domain, ips, params.WwwIncluded())
	})
	if err != nil {
		return r.fail(fmt.Sprintf("Setting DNS records failed: %v", err))
	}
	r.record(progress.StepDNSRecordsSet, true, nil, nil)

	// Delegation: when this run registered the domain the registrar is
	// updated in place; otherwise the operator gets instructions.
	if r.result.Registered {
		if ctx.Err() != nil {
			return r.cancelled(ctx)
		}
		r.emit(progress.StageUpdatingNameservers, "Updating nameservers at registrar", map[string]any{
			"nameservers": zone.Nameservers,
		})
		err = providers.Retry(ctx, "registrar.setNameservers", func() error {
			return w.registrar.SetCustomNameservers(ctx, params.Domain, zone.Nameservers)
		})
		if err != nil {
			return r.fail(fmt.Sprintf("Nameserver update failed: %v", err))
		}
		r.record(progress.StepNameserversUpdated, true, map[string]any{
			"nameservers": zone.Nameservers,
		}, nil)
	} else {
		instructions := &models.NameserverInstructions{
			Nameservers: zone.Nameservers,
			Message: fmt.Sprintf("Point %s at these nameservers with your current registrar to go live.",
				params.Domain),
		}
		if w.nsProbe != nil {
			if current, err := w.nsProbe.Lookup(ctx, params.Domain); err != nil {
				slog.Warn("Delegation probe failed",
					"run_id", r.ID,
					"domain", params.Domain,
					"error", err)
			} else {
				instructions.CurrentNameservers = current
			}
		}
		r.result.NameserverInstructions = instructions
		r.emit(progress.StageNameserverInstructions, "Nameserver update required", map[string]any{
			"nameservers": zone.Nameservers,
		})
	}

	if ctx.Err() != nil {
		return r.cancelled(ctx)
	}
	r.emit(progress.StageConfiguringSecurity, "Configuring edge security", nil)
	if err := w.dns.ConfigureSecurity(ctx, zone.ID); err != nil {
		if ctx.Err() != nil {
			return r.cancelled(ctx)
		}
		return r.fail(fmt.Sprintf("Security configuration failed: %v", err))
	}
	r.record(progress.StepSecurityConfigured, true, nil, nil)

	// SSL state is informational: a check failure defaults to pending.
	ssl, err := w.host.CheckSSLStatus(ctx, site.ID)
	if err != nil {
		slog.Warn("SSL status check failed, assuming pending",
			"run_id", r.ID,
			"site_id", site.ID,
			"error", err)
		ssl = &models.SSLStatus{Enabled: false, Status: "pending"}
	}
	r.result.SSL = ssl
	if ssl.Enabled {
		r.record(progress.StepSSLActive, true, map[string]any{"status": ssl.Status}, nil)
	} else {
		r.record(progress.StepSSLPending, true, map[string]any{"status": ssl.Status}, nil)
	}
	return nil
}

// applyContexts runs the soft content tail: deployment application,
// content generation, content push. Failures are recorded in-line and
// never fail the run.
func (w *DomainSite) applyContexts(ctx context.Context, r *run, params models.DomainSiteParams, site *models.ProvisionedSite) {
	if w.applicator == nil {
		r.record(progress.StepDeploymentApplied, false, nil,
			fmt.Errorf("content application is not configured"))
		return
	}

	siteAPI := w.siteClient(models.SiteCredentials{
		BaseURL:  site.WpURL,
		Username: site.WpUsername,
		Password: site.WpPassword,
	})

	if params.Deployment != nil {
		r.emit(progress.StageApplyingDeployment, "Applying deployment", map[string]any{
			"template": params.Deployment.Template.Slug,
		})
		outcomes := w.applicator.ApplyDeployment(ctx, siteAPI, params.Deployment, params.Content)
		failed := failedTasks(outcomes)
		r.record(progress.StepDeploymentApplied, len(failed) == 0, map[string]any{
			"outcomes": outcomes,
		}, errorFromTasks(failed))
	}

	if params.Content != nil {
		r.emit(progress.StageGeneratingContent, "Generating content", map[string]any{
			"pages": len(params.Content.Pages),
		})
		pages := w.applicator.GeneratePages(ctx, params.Content)
		fallbacks := 0
		for _, page := range pages {
			if page.Fallback {
				fallbacks++
			}
		}
		r.record(progress.StepContentGenerated, true, map[string]any{
			"pages":     len(pages),
			"fallbacks": fallbacks,
		}, nil)

		r.emit(progress.StagePushingContent, "Publishing content", nil)
		pageIDs, frontPageID, outcomes := w.applicator.PushPages(ctx, siteAPI, pages)
		r.result.Apply = &models.ApplyResult{
			Success:     len(failedTasks(outcomes)) == 0,
			Outcomes:    outcomes,
			PageIDs:     pageIDs,
			FrontPageID: frontPageID,
		}
		failed := failedTasks(outcomes)
		r.record(progress.StepContentPushed, len(failed) == 0, map[string]any{
			"pageIds":     pageIDs,
			"frontPageId": frontPageID,
		}, errorFromTasks(failed))
	}
}

func failedTasks(outcomes []models.StepOutcome) []string {
	var failed []string
	for _, outcome := range outcomes {
		if !outcome.Success {
			failed = append(failed, outcome.Task)
		}
	}
	return failed
}

func errorFromTasks(failed []string) error {
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("failed: %s", strings.Join(failed, ", "))
}
