package report

import "golang.org/x/text/language"

// labelSet holds the section headings and captions for one display language.
type labelSet struct {
	Title            string
	Patient          string
	Doctor           string
	PatientID        string
	VisitDate        string
	DiagnosisSummary string
	Medications      string
	WarningSigns     string
	Instructions     string
	GeneratedAt      string
	Signature        string
}

// Supported display languages, in matcher priority order. The first entry
// is the fallback.
var supported = []language.Tag{
	language.English,
	language.Tamil,
	language.Hindi,
	language.Spanish,
}

var matcher = language.NewMatcher(supported)

var labelSets = map[language.Tag]labelSet{
	language.English: {
		Title:            "Patient Visit Report",
		Patient:          "Patient",
		Doctor:           "Doctor",
		PatientID:        "Patient ID",
		VisitDate:        "Visit date",
		DiagnosisSummary: "Diagnosis",
		Medications:      "Medications",
		WarningSigns:     "Warning Signs — Return Immediately If",
		Instructions:     "Detailed Instructions",
		GeneratedAt:      "Report generated",
		Signature:        "Doctor's signature",
	},
	language.Tamil: {
		Title:            "நோயாளர் வருகை அறிக்கை",
		Patient:          "நோயாளர்",
		Doctor:           "மருத்துவர்",
		PatientID:        "நோயாளர் எண்",
		VisitDate:        "வருகை தேதி",
		DiagnosisSummary: "நோயறிதல்",
		Medications:      "மருந்துகள்",
		WarningSigns:     "எச்சரிக்கை அறிகுறிகள் — உடனே திரும்பவும்",
		Instructions:     "விரிவான வழிமுறைகள்",
		GeneratedAt:      "அறிக்கை உருவாக்கப்பட்டது",
		Signature:        "மருத்துவர் கையொப்பம்",
	},
	language.Hindi: {
		Title:            "रोगी विज़िट रिपोर्ट",
		Patient:          "रोगी",
		Doctor:           "डॉक्टर",
		PatientID:        "रोगी आईडी",
		VisitDate:        "विज़िट की तारीख",
		DiagnosisSummary: "निदान",
		Medications:      "दवाइयाँ",
		WarningSigns:     "चेतावनी संकेत — तुरंत वापस आएँ",
		Instructions:     "विस्तृत निर्देश",
		GeneratedAt:      "रिपोर्ट तैयार",
		Signature:        "डॉक्टर के हस्ताक्षर",
	},
	language.Spanish: {
		Title:            "Informe de la visita del paciente",
		Patient:          "Paciente",
		Doctor:           "Doctor",
		PatientID:        "ID del paciente",
		VisitDate:        "Fecha de la visita",
		DiagnosisSummary: "Diagnóstico",
		Medications:      "Medicamentos",
		WarningSigns:     "Señales de alerta — Regrese de inmediato",
		Instructions:     "Instrucciones detalladas",
		GeneratedAt:      "Informe generado",
		Signature:        "Firma del doctor",
	},
}

// fontFiles maps languages whose script the PDF core fonts cannot render to
// an embedded font resource looked up under the configured font directory.
var fontFiles = map[language.Tag]string{
	language.Tamil: "NotoSansTamil-Regular.ttf",
	language.Hindi: "NotoSansDevanagari-Regular.ttf",
}

// fallbackLabels is the caption set used when a script font cannot be
// loaded and the core font has to carry the page.
func fallbackLabels() labelSet {
	return labelSets[language.English]
}

// resolve matches a requested language (BCP 47 or bare code) against the
// supported set and returns its labels plus the font file needed for its
// script ("" when the core font suffices).
func resolve(lang string) (labelSet, string) {
	_, idx := language.MatchStrings(matcher, lang)
	canonical := supported[idx]
	return labelSets[canonical], fontFiles[canonical]
}
