package refine

import "github.com/helixir/evidence-aggregation-service/internal/domain"

// stopWords are tokens carrying no topical signal, removed before term
// matching and synonym lookup.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "can": true, "do": true, "does": true, "for": true,
	"from": true, "how": true, "in": true, "is": true, "it": true, "of": true,
	"on": true, "or": true, "that": true, "the": true, "their": true,
	"this": true, "to": true, "what": true, "when": true, "which": true,
	"with": true,
}

// intentKeywords maps query tokens to a coarse query intent. First table
// with a hit wins, in the order intentOrder lists them.
var intentKeywords = map[domain.QueryIntent][]string{
	domain.IntentTreatment: {
		"treatment", "therapy", "drug", "medication", "intervention",
		"efficacy", "effectiveness", "dose", "dosage", "regimen", "manage",
		"management",
	},
	domain.IntentDiagnosis: {
		"diagnosis", "diagnostic", "screening", "detection", "biomarker",
		"test", "imaging", "sensitivity", "specificity",
	},
	domain.IntentMechanism: {
		"mechanism", "pathway", "pathophysiology", "pathogenesis",
		"molecular", "signaling", "receptor", "expression",
	},
	domain.IntentPrognosis: {
		"prognosis", "prognostic", "survival", "mortality", "outcome",
		"recurrence", "progression", "risk",
	},
}

// intentOrder fixes the precedence when a query matches several intents.
var intentOrder = []domain.QueryIntent{
	domain.IntentTreatment,
	domain.IntentDiagnosis,
	domain.IntentPrognosis,
	domain.IntentMechanism,
}

// domainKeywords maps query tokens to a coarse medical specialty.
var domainKeywords = map[domain.MedicalDomain][]string{
	domain.DomainCardiology: {
		"cardiac", "cardiovascular", "heart", "coronary", "myocardial",
		"arrhythmia", "hypertension", "atherosclerosis", "stroke",
		"statin", "anticoagulant",
	},
	domain.DomainOncology: {
		"cancer", "tumor", "tumour", "carcinoma", "oncology", "chemotherapy",
		"metastasis", "metastatic", "lymphoma", "leukemia", "melanoma",
		"immunotherapy",
	},
	domain.DomainEndocrinology: {
		"diabetes", "diabetic", "insulin", "glucose", "glycemic", "thyroid",
		"metformin", "obesity", "metabolic", "hormone",
	},
	domain.DomainNeurology: {
		"neurological", "brain", "alzheimer", "alzheimers", "parkinson",
		"parkinsons", "epilepsy", "seizure", "dementia", "migraine",
		"multiple sclerosis", "neuropathy",
	},
	domain.DomainInfectious: {
		"infection", "infectious", "antibiotic", "antimicrobial", "viral",
		"bacterial", "sepsis", "vaccine", "vaccination", "covid",
		"influenza", "hiv", "tuberculosis",
	},
	domain.DomainPsychiatry: {
		"depression", "anxiety", "psychiatric", "antidepressant",
		"schizophrenia", "bipolar", "ptsd", "adhd", "ssri",
	},
}

// domainOrder fixes the precedence when a query matches several domains.
var domainOrder = []domain.MedicalDomain{
	domain.DomainOncology,
	domain.DomainCardiology,
	domain.DomainEndocrinology,
	domain.DomainNeurology,
	domain.DomainInfectious,
	domain.DomainPsychiatry,
}

// DomainTerms lists vocabulary associated with each medical specialty, used
// by the scorer to reward records matching the query's detected domain.
var DomainTerms = domainKeywords

// synonyms expands common clinical terms with controlled-vocabulary
// equivalents. Keys are single lowercase tokens or two-token phrases.
var synonyms = map[string][]string{
	"heart attack":    {"myocardial infarction"},
	"high blood":      {"hypertension"},
	"stroke":          {"cerebrovascular accident"},
	"cancer":          {"neoplasm"},
	"diabetes":        {"diabetes mellitus"},
	"kidney disease":  {"renal disease"},
	"heart failure":   {"cardiac failure"},
	"blood thinner":   {"anticoagulant"},
	"flu":             {"influenza"},
	"covid":           {"sars-cov-2", "covid-19"},
	"alzheimers":      {"alzheimer disease"},
	"parkinsons":      {"parkinson disease"},
	"depression":      {"depressive disorder"},
	"obesity":         {"overweight"},
	"antibiotic":      {"antibacterial agent"},
	"blood pressure":  {"hypertension"},
	"blood sugar":     {"blood glucose"},
	"heartburn":       {"gastroesophageal reflux"},
	"painkiller":      {"analgesic"},
	"birth control":   {"contraception"},
	"metformin":       {"biguanide"},
	"chemotherapy":    {"antineoplastic therapy"},
	"immunotherapy":   {"immune checkpoint inhibitor"},
	"statin":          {"hmg-coa reductase inhibitor"},
	"type 2 diabetes": {"type 2 diabetes mellitus"},
}

// intentQualifiers are study-type qualifiers appended to boolean queries
// for intents where the evidence hierarchy strongly prefers certain designs.
var intentQualifiers = map[domain.QueryIntent]string{
	domain.IntentTreatment: `("randomized controlled trial"[Publication Type] OR "systematic review"[Publication Type] OR "meta-analysis"[Publication Type])`,
	domain.IntentPrognosis: `("cohort studies"[MeSH Terms] OR prognos*[Title/Abstract])`,
}
