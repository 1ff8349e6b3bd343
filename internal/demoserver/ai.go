package demoserver

import (
	"fmt"
	"regexp"
	"strings"
)

// mockTranscript is the canned consultation used by the demo transcription
// path. The heuristic extractor below is tuned to produce a sensible
// clinical report out of it.
const mockTranscript = `Doctor: Good morning, how are you feeling today?
Patient: I have been having headaches for the past week, and some fever.
Doctor: Any other symptoms? Cough, body ache?
Patient: Yes, body ache and mild cough. I took paracetamol but it did not help much.
Doctor: I see. Based on your symptoms, this appears to be a viral flu. I will prescribe:
- Paracetamol 500mg, two tablets three times a day after food
- Rest for at least 3 days
- Plenty of fluids
Patient: Okay doctor, when should I come back?
Doctor: If symptoms persist beyond 5 days or you develop breathing difficulty, come immediately. Otherwise, follow up in one week.
Patient: Thank you doctor.`

var teachBackQuestions = []string{
	"Can you tell me what medication the doctor prescribed and how to take it?",
	"When should you come back for a follow-up?",
	"What warning signs mean you should return immediately?",
}

// Canned patient answers used when scoring a teach-back recording; without
// a speech model the demo cannot split a real recording per question.
var teachBackAnswers = []string{
	"Paracetamol 500mg, two tablets three times a day after food.",
	"Follow up in one week, or after 5 days if symptoms persist.",
	"Breathing difficulty, or if the fever does not come down.",
}

// reportStrings holds the fixed, localizable parts of the take-home
// report. Extracted clinical text stays in the consultation's source
// language; the demo has no translation model, so only the scaffolding is
// localized.
type reportStrings struct {
	summaryHeading      string
	diagnosisHeading    string
	medicationsHeading  string
	instructionsHeading string
	warningHeading      string
	warningBody         string
	footer              string
	notSpecified        string
	noMedications       string
	noFollowUp          string
	warningSigns        string
}

var reportLocales = map[string]reportStrings{
	"en": {
		summaryHeading:      "YOUR VISIT SUMMARY",
		diagnosisHeading:    "DIAGNOSIS",
		medicationsHeading:  "MEDICATIONS",
		instructionsHeading: "IMPORTANT INSTRUCTIONS",
		warningHeading:      "WARNING SIGNS",
		warningBody: `Return immediately if you experience:
- Breathing difficulty or shortness of breath
- Severe pain that doesn't improve
- High fever (above 101°F/38.5°C)
- Any other severe or concerning symptoms`,
		footer:        "If you have questions, contact your doctor or hospital. Download and keep this report for your records.",
		notSpecified:  "Not specified",
		noMedications: "No medications prescribed",
		noFollowUp:    "No specific follow-up instructions",
		warningSigns:  "Breathing difficulty, severe pain, high fever, or any other severe symptoms.",
	},
	"ta": {
		summaryHeading:      "உங்கள் வருகை சுருக்கம்",
		diagnosisHeading:    "நோயறிதல்",
		medicationsHeading:  "மருந்துகள்",
		instructionsHeading: "முக்கிய வழிமுறைகள்",
		warningHeading:      "எச்சரிக்கை அறிகுறிகள்",
		warningBody: `கீழ்க்கண்டவை ஏற்பட்டால் உடனே திரும்பவும்:
- மூச்சுத் திணறல்
- குறையாத கடும் வலி
- அதிக காய்ச்சல் (101°F/38.5°C க்கு மேல்)
- வேறு எந்த கடுமையான அறிகுறிகளும்`,
		footer:        "கேள்விகள் இருந்தால் உங்கள் மருத்துவரை அல்லது மருத்துவமனையை தொடர்பு கொள்ளவும். இந்த அறிக்கையை பதிவிறக்கம் செய்து வைத்துக்கொள்ளவும்.",
		notSpecified:  "குறிப்பிடப்படவில்லை",
		noMedications: "மருந்துகள் எதுவும் பரிந்துரைக்கப்படவில்லை",
		noFollowUp:    "குறிப்பிட்ட பின்தொடர்தல் வழிமுறைகள் இல்லை",
		warningSigns:  "மூச்சுத் திணறல், கடும் வலி, அதிக காய்ச்சல் அல்லது வேறு கடுமையான அறிகுறிகள்.",
	},
	"hi": {
		summaryHeading:      "आपकी विज़िट का सारांश",
		diagnosisHeading:    "निदान",
		medicationsHeading:  "दवाइयाँ",
		instructionsHeading: "महत्वपूर्ण निर्देश",
		warningHeading:      "चेतावनी संकेत",
		warningBody: `इनमें से कुछ भी होने पर तुरंत वापस आएँ:
- साँस लेने में कठिनाई
- ठीक न होने वाला तेज़ दर्द
- तेज़ बुखार (101°F/38.5°C से ऊपर)
- कोई अन्य गंभीर लक्षण`,
		footer:        "प्रश्न होने पर अपने डॉक्टर या अस्पताल से संपर्क करें। यह रिपोर्ट डाउनलोड करके अपने पास रखें।",
		notSpecified:  "निर्दिष्ट नहीं",
		noMedications: "कोई दवा नहीं लिखी गई",
		noFollowUp:    "कोई विशेष फ़ॉलो-अप निर्देश नहीं",
		warningSigns:  "साँस लेने में कठिनाई, तेज़ दर्द, तेज़ बुखार या कोई अन्य गंभीर लक्षण।",
	},
	"es": {
		summaryHeading:      "RESUMEN DE SU VISITA",
		diagnosisHeading:    "DIAGNÓSTICO",
		medicationsHeading:  "MEDICAMENTOS",
		instructionsHeading: "INSTRUCCIONES IMPORTANTES",
		warningHeading:      "SEÑALES DE ALERTA",
		warningBody: `Regrese de inmediato si presenta:
- Dificultad para respirar
- Dolor intenso que no mejora
- Fiebre alta (más de 101°F/38.5°C)
- Cualquier otro síntoma grave`,
		footer:        "Si tiene preguntas, contacte a su doctor u hospital. Descargue y conserve este informe.",
		notSpecified:  "No especificado",
		noMedications: "No se recetaron medicamentos",
		noFollowUp:    "Sin instrucciones específicas de seguimiento",
		warningSigns:  "Dificultad para respirar, dolor intenso, fiebre alta u otros síntomas graves.",
	},
}

// localeFor returns the report strings for a language code, falling back
// to English for anything unknown.
func localeFor(lang string) reportStrings {
	if loc, ok := reportLocales[lang]; ok {
		return loc
	}
	return reportLocales["en"]
}

// clinicalFields is the structured extraction result.
type clinicalFields struct {
	Symptoms    string
	Diagnosis   string
	Medications string
	FollowUp    string
}

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

var symptomKeywords = map[string]string{
	"headache":  "headache",
	"headaches": "headache",
	"fever":     "fever",
	"pain":      "pain",
	"ache":      "pain",
	"aching":    "pain",
	"cough":     "cough",
	"coughing":  "cough",
	"body ache": "body ache",
	"body pain": "body ache",
	"nausea":    "nausea",
	"vomiting":  "vomiting",
	"diarrhea":  "diarrhea",
	"dizziness": "dizziness",
}

// extractClinical is a keyword scan over speaker-labelled transcript lines:
// symptoms from Patient lines, diagnosis/medications/follow-up from Doctor
// lines.
func extractClinical(transcript string) clinicalFields {
	var out clinicalFields
	lines := strings.Split(transcript, "\n")

	var symptoms []string
	seen := map[string]bool{}
	for _, line := range lines {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "patient:") {
			continue
		}
		for keyword, symptom := range symptomKeywords {
			if strings.Contains(lower, keyword) && !seen[symptom] {
				seen[symptom] = true
				symptoms = append(symptoms, symptom)
			}
		}
	}
	out.Symptoms = strings.Join(symptoms, ", ")

	diagnosisKeywords := []string{"viral", "flu", "infection", "diagnosis", "appears"}
	for _, line := range lines {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "doctor:") {
			continue
		}
		if !containsAny(lower, "viral flu", "flu", "infection", "diagnosis") {
			continue
		}
		for _, sent := range sentenceSplit.Split(line, -1) {
			if containsAny(strings.ToLower(sent), diagnosisKeywords...) {
				out.Diagnosis = strings.TrimSpace(sent)
				break
			}
		}
		if out.Diagnosis != "" {
			break
		}
	}

	medKeywords := []string{"prescribe", "medicine", "tablet", "pill", "medication", "take", "mg", "paracetamol", "ibuprofen"}
	var medSentences []string
	for _, line := range lines {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "doctor:") && !strings.HasPrefix(strings.TrimSpace(line), "-") {
			continue
		}
		if !containsAny(lower, medKeywords...) {
			continue
		}
		for _, sent := range sentenceSplit.Split(line, -1) {
			if containsAny(strings.ToLower(sent), medKeywords...) {
				medSentences = append(medSentences, strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(sent), "- ")))
			}
		}
	}
	if len(medSentences) > 3 {
		medSentences = medSentences[:3]
	}
	out.Medications = strings.Join(medSentences, ". ")

	followKeywords := []string{"come back", "return", "follow up", "follow-up", "next week", "next visit", "if symptoms", "immediately"}
	var followSentences []string
	for _, line := range lines {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "doctor:") || !containsAny(lower, followKeywords...) {
			continue
		}
		for _, sent := range sentenceSplit.Split(line, -1) {
			if containsAny(strings.ToLower(sent), followKeywords...) {
				followSentences = append(followSentences, strings.TrimSpace(sent))
			}
		}
	}
	if len(followSentences) > 2 {
		followSentences = followSentences[:2]
	}
	out.FollowUp = strings.Join(followSentences, ". ")

	return out
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// scoreAnswer grades one teach-back answer. An empty answer always scores
// zero; otherwise the demo grader hands out a flat passing score.
func scoreAnswer(answer string) int {
	if strings.TrimSpace(answer) == "" {
		return 0
	}
	return 75
}

// reportContent formats the take-home report body from the clinical fields
// with the requested language's scaffolding. It is a pure function of the
// fields and language, so re-rendering in another language and back
// restores the original text.
func reportContent(cr clinicalFields, lang string) string {
	loc := localeFor(lang)
	diagnosis := orDefault(cr.Diagnosis, loc.notSpecified)
	medications := orDefault(cr.Medications, loc.noMedications)
	followUp := orDefault(cr.FollowUp, loc.noFollowUp)
	return fmt.Sprintf(`=== %s ===

=== %s ===
%s

=== %s ===
%s

=== %s ===
%s

=== %s ===
%s

%s`,
		loc.summaryHeading,
		loc.diagnosisHeading, diagnosis,
		loc.medicationsHeading, medications,
		loc.instructionsHeading, followUp,
		loc.warningHeading, loc.warningBody,
		loc.footer)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
