package notifier

import (
	"strings"

	"github.com/BearBump/RepairBox/internal/models"
)

const DefaultShopName = "Carrozzeria Fagioli"

var statusTexts = map[models.Status]string{
	models.StatusAccepted:      "in lavorazione - veicolo accettato",
	models.StatusAwaitingParts: "in attesa dei ricambi",
	models.StatusInProgress:    "in lavorazione carrozzeria",
	models.StatusPainting:      "in fase di verniciatura",
	models.StatusQualityCheck:  "in controllo qualita",
	models.StatusReady:         "pronto per il ritiro",
	models.StatusDelivered:     "stato consegnato. Grazie per averci scelto",
}

// Text builds the SMS body for a new status. ok=false means no SMS for this status.
func Text(shop string, status models.Status, plate, trackingURL string) (string, bool) {
	if shop == "" {
		shop = DefaultShopName
	}
	switch status {
	case models.StatusIntake:
		return "", false
	case models.StatusReady:
		return shop + ": Il tuo veicolo (" + plate + ") e pronto per il ritiro! Contattaci per concordare l'orario.", true
	}

	text, ok := statusTexts[status]
	if !ok {
		return "", false
	}
	body := shop + ": Il tuo veicolo (" + plate + ") e " + text + "."
	if trackingURL != "" {
		body += " Segui lo stato: " + trackingURL
	}
	return body, true
}

// FormatPhone приводит номер к международному виду: 10 цифр без кода страны
// считаются итальянским номером.
func FormatPhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	if len(digits) == 10 && !strings.HasPrefix(digits, "39") {
		return "+39" + digits
	}
	return "+" + digits
}

// TrackingURL joins the public tracking base with the code; empty base gives "".
func TrackingURL(base, code string) string {
	if base == "" || code == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + code
}
