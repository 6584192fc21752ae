// Package dialog implements the slot-filling state machine. There is no
// stored state enum: the active question is recomputed every turn from slot
// presence, so the flow is a total function over the declared slot order.
package dialog

import (
	"github.com/sahmacademy/sahmbot/internal/i18n"
	"github.com/sahmacademy/sahmbot/internal/intent"
)

// SlotSpec is one step of a flow: the question to ask and the predicate
// deciding whether the step is already satisfied by the current slots.
type SlotSpec struct {
	Ask    string
	Filled func(slots map[string]string) bool
}

func has(key string) func(map[string]string) bool {
	return func(slots map[string]string) bool { return slots[key] != "" }
}

func hasAny(keys ...string) func(map[string]string) bool {
	return func(slots map[string]string) bool {
		for _, k := range keys {
			if slots[k] != "" {
				return true
			}
		}
		return false
	}
}

var flows = map[intent.Intent][]SlotSpec{
	intent.CreateAppointment: {
		{Ask: i18n.KeyAskName, Filled: has("name")},
		{Ask: i18n.KeyAskContact, Filled: hasAny("phone", "email")},
		{Ask: i18n.KeyAskDatetime, Filled: has("datetime")},
		{Ask: i18n.KeyAskLocation, Filled: has("location")},
		{Ask: i18n.KeyAskNotes, Filled: has("notes")},
	},
	intent.CreateTicket: {
		{Ask: i18n.KeyAskContact, Filled: hasAny("phone", "email")},
		{Ask: i18n.KeyAskName, Filled: has("name")},
		{Ask: i18n.KeyAskSubject, Filled: has("subject")},
		{Ask: i18n.KeyAskMessage, Filled: has("message")},
		{Ask: i18n.KeyAskConsent, Filled: has("consent")},
	},
}

var allowedSlots = map[intent.Intent]map[string]bool{
	intent.CreateAppointment: {
		"name": true, "phone": true, "email": true,
		"datetime": true, "location": true, "notes": true,
	},
	intent.CreateTicket: {
		"phone": true, "email": true, "name": true,
		"subject": true, "message": true, "consent": true,
	},
}

// NextQuestion scans the intent's slot list in priority order and returns the
// first unfilled question key, or "" when the flow is complete or unknown.
func NextQuestion(it intent.Intent, slots map[string]string) string {
	for _, spec := range flows[it] {
		if !spec.Filled(slots) {
			return spec.Ask
		}
	}
	return ""
}

// AllowedSlots returns the valid slot keys for an intent; nil for intents
// without a flow.
func AllowedSlots(it intent.Intent) map[string]bool {
	return allowedSlots[it]
}
