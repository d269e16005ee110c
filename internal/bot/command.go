package bot

import "strings"

// Text synonyms tolerated for the numeric menu commands. The digits are
// authoritative and synonym coverage is a convenience, not a contract.
// Mapping is applied after the reset/txid/payment-confirmation checks, so a
// synonym never answers a pending-charge prompt ("menu" resets via its own
// branch).
var textSynonyms = map[string]string{
	"planos":      "1",
	"plano":       "1",
	"status":      "2",
	"credenciais": "3",
	"login":       "3",
	"renovar":     "4",
	"tutoriais":   "5",
	"tutorial":    "5",
	"teste":       "6",
	"sim":         "1",
	"nao":         "2",
}

// Plan name synonyms map straight to the plan-selection digits used inside
// the plan chooser.
var planSynonyms = map[string]string{
	"mensal":     "2",
	"trimestral": "3",
	"semestral":  "4",
	"anual":      "5",
}

// normalize lowercases, trims and strips accents-ish punctuation from the
// inbound text. Returns the canonical form used by the state machine.
func normalize(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.Map(func(r rune) rune {
		switch r {
		case 'ã', 'á', 'à', 'â':
			return 'a'
		case 'é', 'ê':
			return 'e'
		case 'í':
			return 'i'
		case 'õ', 'ó', 'ô':
			return 'o'
		case 'ú':
			return 'u'
		case 'ç':
			return 'c'
		}
		return r
	}, t)
	return t
}

// tutorialEntry is one device tutorial offered by the tutorials menu.
type tutorialEntry struct {
	Key   string
	Name  string
	App   string
	Video string
}

// tutorials maps the tutorial-menu digits to their device entries.
var tutorials = map[string]tutorialEntry{
	"1": {Key: "samsung", Name: "Samsung Smart TV", App: "Lazer Play", Video: "https://youtu.be/qlSRNVQgkIU"},
	"2": {Key: "android", Name: "Android TV / TV Box", App: "Uniplay IPTV", Video: "https://www.youtube.com/watch?v=FAoP4uu3vWs"},
	"3": {Key: "lg", Name: "LG Smart TV", App: "Smarters Pro", Video: "https://www.youtube.com/watch?v=2sMmOCtlhoo"},
	"4": {Key: "roku", Name: "Roku TV", App: "IPTV Player", Video: "https://www.youtube.com/watch?v=f_-1YmGawlE"},
	"5": {Key: "pc", Name: "PC/Notebook", App: "Purple Player", Video: "https://www.youtube.com/watch?v=qtjlLoBM1cw"},
	"6": {Key: "ssiptv", Name: "SS IPTV", App: "SS IPTV (adicionar playlist)", Video: "https://www.youtube.com/watch?v=NSzrIep2ZjM"},
	"7": {Key: "android_mobile", Name: "Celular Android", App: "IPTV Smarters Pro", Video: "https://www.youtube.com/watch?v=kYBXTwHhPUc"},
	"8": {Key: "ios_mobile", Name: "iPhone/iPad", App: "IPTV Smarters Pro", Video: "https://www.youtube.com/watch?v=mF8jJ5rKjgE"},
}

// tutorialByKey resolves a stored tutorial key back to its entry.
func tutorialByKey(key string) (tutorialEntry, bool) {
	for _, t := range tutorials {
		if t.Key == key {
			return t, true
		}
	}
	return tutorialEntry{}, false
}

// MessageKeys lists every catalog key the orchestrator sends. Startup
// validates the loaded catalog against this list so a missing translation
// fails at boot rather than leaking a raw key to a user.
func MessageKeys() []string {
	return []string{
		"welcome", "menu", "plans", "plans_renew", "plan_invalid",
		"charge_generating", "charge_details", "charge_failed",
		"ask_payment_confirmation", "payment_confirmed_processing",
		"payment_not_confirmed", "payment_not_yet_ok",
		"payment_already_processed", "payment_wrong_owner",
		"provision_failed", "no_pending_tx", "txid_attached", "txid_invalid",
		"trial_creating", "trial_not_allowed", "trial_failed",
		"credentials_created", "credentials_header", "credentials_entry",
		"credentials_none", "status_header", "status_entry", "status_none",
		"tutorials_menu", "tutorial_invalid", "tutorial_free",
		"tutorial_paid", "install_options", "install_invalid",
		"unknown_command", "generic_error",
	}
}
