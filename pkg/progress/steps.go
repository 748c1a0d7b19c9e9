package progress

// Stage names are emitted on the progress channel while a pipeline stage is
// in flight. The vocabulary is fixed; consumers switch on these literals.
const (
	StageValidatingConfig       = "validating_config"
	StageCheckingDomain         = "checking_domain"
	StageRegisteringDomain      = "registering_domain"
	StageCreatingSite           = "creating_site"
	StageWaitingForSite         = "waiting_for_site"
	StageMappingDomain          = "mapping_domain"
	StageCreatingZone           = "creating_cloudflare_zone"
	StageSettingDNSRecords      = "setting_dns_records"
	StageUpdatingNameservers    = "updating_nameservers"
	StageNameserverInstructions = "emit_nameserver_instructions"
	StageConfiguringSecurity    = "configuring_security"
	StageApplyingDeployment     = "applying_deployment"
	StageGeneratingContent      = "generating_content"
	StagePushingContent         = "pushing_content"
	StageComplete               = "complete"
	StageError                  = "error"
	StageResult                 = "result"
	StageCancelled              = "cancelled"

	// Onboarding stages.
	StageScrapingSite       = "scraping_site"
	StageExtractingBrand    = "extracting_brand"
	StageAnalyzingSite      = "analyzing_site"
	StageProcessingAnswers  = "processing_answers"
	StageMatchingTemplate   = "matching_template"
	StageBuildingContexts   = "building_contexts"
	StageValidatingContexts = "validating_contexts"
)

// Step record ids are appended to a run's StepRecord list when a stage
// finishes (successfully or not).
const (
	StepConfigValidated    = "config_validated"
	StepDomainChecked      = "domain_checked"
	StepDomainRegistered   = "domain_registered"
	StepSiteCreated        = "site_created"
	StepSiteReady          = "site_ready"
	StepDomainMapped       = "domain_mapped"
	StepZoneCreated        = "cloudflare_zone_created"
	StepDNSRecordsSet      = "dns_records_set"
	StepNameserversUpdated = "nameservers_updated"
	StepSecurityConfigured = "security_configured"
	StepSSLPending         = "ssl_pending"
	StepSSLActive          = "ssl_active"
	StepDeploymentApplied  = "deployment_applied"
	StepContentGenerated   = "content_generated"
	StepContentPushed      = "content_pushed"
	StepCancelled          = "cancelled"

	// Onboarding step records.
	StepScrapeCompleted   = "scrape_completed"
	StepBrandExtracted    = "brand_extracted"
	StepSiteAnalyzed      = "site_analyzed"
	StepBriefBuilt        = "brief_built"
	StepTemplateMatched   = "template_matched"
	StepContextsBuilt     = "contexts_built"
	StepContextsValidated = "contexts_validated"
)

// DomainSiteStepOrder is the canonical record order for the domain+site
// pipeline. A run's records are always an order-preserving subsequence of
// this list (conditional stages are skipped, not reordered).
var DomainSiteStepOrder = []string{
	StepConfigValidated,
	StepDomainChecked,
	StepDomainRegistered,
	StepSiteCreated,
	StepSiteReady,
	StepDomainMapped,
	StepZoneCreated,
	StepDNSRecordsSet,
	StepNameserversUpdated,
	StepSecurityConfigured,
	StepSSLPending,
	StepSSLActive,
	StepDeploymentApplied,
	StepContentGenerated,
	StepContentPushed,
	StepCancelled,
}

// OnboardingStepOrder is the canonical record order for onboarding runs.
var OnboardingStepOrder = []string{
	StepScrapeCompleted,
	StepBrandExtracted,
	StepSiteAnalyzed,
	StepBriefBuilt,
	StepTemplateMatched,
	StepContextsBuilt,
	StepContextsValidated,
	StepCancelled,
}

// IsOrderedSubsequence reports whether steps appear in order (possibly with
// gaps) within the canonical list. Unknown step ids fail the check.
func IsOrderedSubsequence(steps, canonical []string) bool {
	rank := make(map[string]int, len(canonical))
	for i, s := range canonical {
		rank[s] = i
	}
	last := -1
	for _, s := range steps {
		r, ok := rank[s]
		if !ok || r <= last {
			return false
		}
		last = r
	}
	return true
}
