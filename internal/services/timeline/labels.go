package timeline

import "github.com/BearBump/RepairBox/internal/models"

type stepText struct {
	Label       string
	Description string
}

var stepTexts = map[models.Status]stepText{
	models.StatusIntake:        {"Pre-check-in", "Richiesta ricevuta, in attesa di conferma appuntamento"},
	models.StatusAccepted:      {"Accettato", "Veicolo consegnato in carrozzeria"},
	models.StatusAwaitingParts: {"In attesa ricambi", "In attesa di ricambi necessari"},
	models.StatusInProgress:    {"In lavorazione", "Lavori in corso sul veicolo"},
	models.StatusPainting:      {"In verniciatura", "Fase di verniciatura in corso"},
	models.StatusQualityCheck:  {"Controllo qualità", "Verifica finale in corso"},
	models.StatusReady:         {"Pronto per il ritiro", "Il veicolo è pronto! Puoi venire a ritirarlo"},
	models.StatusDelivered:     {"Consegnato", "Veicolo ritirato dal cliente"},
}

// Label returns the customer-facing name of a status.
func Label(s models.Status) string {
	if t, ok := stepTexts[s]; ok {
		return t.Label
	}
	return string(s)
}
