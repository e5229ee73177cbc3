// Package domain provides domain models and business logic for the Evidence Aggregation Service.
package domain

// SourceType represents the external bibliographic provider that supplied record data.
type SourceType string

const (
	SourceTypePubMed          SourceType = "pubmed"
	SourceTypeOpenAlex        SourceType = "openalex"
	SourceTypeSemanticScholar SourceType = "semantic_scholar"
	SourceTypeEuropePMC       SourceType = "europepmc"
	SourceTypeCrossref        SourceType = "crossref"
)

// AllSourceTypes lists every known source type in a fixed order.
// Used for configuration validation and diagnostics reporting.
var AllSourceTypes = []SourceType{
	SourceTypePubMed,
	SourceTypeOpenAlex,
	SourceTypeSemanticScholar,
	SourceTypeEuropePMC,
	SourceTypeCrossref,
}

// StudyType classifies a record's position in the clinical evidence hierarchy.
// The classification is derived from provider metadata or inferred from the
// title and venue; it is never authoritative.
type StudyType string

const (
	StudyTypeSystematicReview StudyType = "systematic_review"
	StudyTypeMetaAnalysis     StudyType = "meta_analysis"
	StudyTypeRandomizedTrial  StudyType = "randomized_trial"
	StudyTypeCohortStudy      StudyType = "cohort_study"
	StudyTypeCaseControl      StudyType = "case_control"
	StudyTypeCaseReport       StudyType = "case_report"
	StudyTypeGuideline        StudyType = "guideline"
	StudyTypePreprint         StudyType = "preprint"
	StudyTypeUnknown          StudyType = "unknown"
)

// QueryIntent is the coarse intent detected in a raw query.
type QueryIntent string

const (
	IntentTreatment QueryIntent = "treatment"
	IntentDiagnosis QueryIntent = "diagnosis"
	IntentMechanism QueryIntent = "mechanism"
	IntentPrognosis QueryIntent = "prognosis"
	IntentGeneral   QueryIntent = "general"
)

// MedicalDomain is the coarse medical specialty detected in a raw query.
type MedicalDomain string

const (
	DomainCardiology    MedicalDomain = "cardiology"
	DomainOncology      MedicalDomain = "oncology"
	DomainEndocrinology MedicalDomain = "endocrinology"
	DomainNeurology     MedicalDomain = "neurology"
	DomainInfectious    MedicalDomain = "infectious_disease"
	DomainPsychiatry    MedicalDomain = "psychiatry"
	DomainGeneral       MedicalDomain = "general"
)
