// Package conversation is the per-user state machine. Transition is pure:
// the caller gathers the facts, applies the returned effects and persists
// Next only when every effect succeeded.
package conversation

import (
	"github.com/linesmerrill/counsel-relay-api/models"
)

// Trigger is an inbound event after classification
type Trigger int

const (
	TriggerStart Trigger = iota + 1
	// TriggerChooseCategory is a category pick from the menu
	TriggerChooseCategory
	// TriggerAssigned and TriggerUnavailable feed back the result of EffectAssign
	TriggerAssigned
	TriggerUnavailable
	// TriggerMessage is text or media content
	TriggerMessage
	// TriggerEnd asks to finish the active session; Facts.EndedBy says who
	TriggerEnd
	// TriggerBack is the return-back button
	TriggerBack
)

var triggerNames = map[Trigger]string{
	TriggerStart:          "start",
	TriggerChooseCategory: "choose_category",
	TriggerAssigned:       "assigned",
	TriggerUnavailable:    "unavailable",
	TriggerMessage:        "message",
	TriggerEnd:            "end",
	TriggerBack:           "back",
}

func (t Trigger) String() string {
	if name, ok := triggerNames[t]; ok {
		return name
	}
	return "unknown"
}

// Party identifies who ended a session
type Party int

const (
	ByUser Party = iota
	ByCounselor
	ByAdmin
)

// Facts are read from the stores before a transition
type Facts struct {
	Blocked          bool
	HasActiveSession bool
	EndedBy          Party
}

// Effect is a side effect the caller must carry out
type Effect int

const (
	// EffectWelcome greets the user with their handle
	EffectWelcome Effect = iota + 1
	// EffectShowMenu offers the category menu
	EffectShowMenu
	// EffectPromptStart asks a never-seen user to send /start
	EffectPromptStart
	// EffectAssign asks the assignment engine for a counselor and feeds the
	// outcome back as TriggerAssigned or TriggerUnavailable
	EffectAssign
	// EffectCreateSession persists the pairing
	EffectCreateSession
	// EffectNotifyConnected tells both parties about the new session
	EffectNotifyConnected
	// EffectRelay records the message and forwards it to the counterpart
	EffectRelay
	// EffectFinishSession finishes the active session
	EffectFinishSession
	// EffectNotifyEnded tells both parties who ended the session
	EffectNotifyEnded
	// EffectRemindInChat tells the user they are still connected
	EffectRemindInChat
)

var effectNames = map[Effect]string{
	EffectWelcome:         "welcome",
	EffectShowMenu:        "show_menu",
	EffectPromptStart:     "prompt_start",
	EffectAssign:          "assign",
	EffectCreateSession:   "create_session",
	EffectNotifyConnected: "notify_connected",
	EffectRelay:           "relay",
	EffectFinishSession:   "finish_session",
	EffectNotifyEnded:     "notify_ended",
	EffectRemindInChat:    "remind_in_chat",
}

func (e Effect) String() string {
	if name, ok := effectNames[e]; ok {
		return name
	}
	return "unknown"
}

// Decision is the outcome of a transition. A non-nil Err means the event was
// rejected; Next then equals the current state and Effects only carry what
// should be shown to the user alongside the error.
type Decision struct {
	Next    models.ConversationState
	Effects []Effect
	Err     error
}

// Has reports whether the decision asks for effect
func (d Decision) Has(effect Effect) bool {
	for _, e := range d.Effects {
		if e == effect {
			return true
		}
	}
	return false
}

func stay(state models.ConversationState, effects ...Effect) Decision {
	return Decision{Next: state, Effects: effects}
}

func reject(state models.ConversationState, err error, effects ...Effect) Decision {
	return Decision{Next: state, Effects: effects, Err: err}
}

// Transition is the single authority over a user's conversational state
func Transition(state models.ConversationState, trigger Trigger, facts Facts) Decision {
	if facts.Blocked {
		return reject(state, models.ErrBlocked)
	}

	switch state {
	case models.StateIdle, "":
		switch trigger {
		case TriggerStart:
			return stay(models.StateSelectingCategory, EffectWelcome, EffectShowMenu)
		default:
			return stay(models.StateIdle, EffectPromptStart)
		}

	case models.StateSelectingCategory:
		switch trigger {
		case TriggerStart:
			return stay(state, EffectWelcome, EffectShowMenu)
		case TriggerChooseCategory:
			if facts.HasActiveSession {
				return reject(state, models.ErrDuplicateActiveSession)
			}
			return stay(state, EffectAssign)
		case TriggerAssigned:
			if facts.HasActiveSession {
				return reject(state, models.ErrDuplicateActiveSession)
			}
			return stay(models.StateInChat, EffectCreateSession, EffectNotifyConnected)
		case TriggerUnavailable:
			return reject(state, models.ErrUnavailable, EffectShowMenu)
		case TriggerEnd:
			return reject(state, models.ErrNotFound, EffectShowMenu)
		default:
			return stay(state, EffectShowMenu)
		}

	case models.StateInChat:
		switch trigger {
		case TriggerMessage:
			return stay(state, EffectRelay)
		case TriggerEnd, TriggerBack:
			return stay(models.StateSelectingCategory, EffectFinishSession, EffectNotifyEnded, EffectShowMenu)
		case TriggerChooseCategory:
			return reject(state, models.ErrDuplicateActiveSession)
		case TriggerStart:
			return stay(state, EffectRemindInChat)
		default:
			return stay(state)
		}
	}

	// unknown stored value: start over
	return stay(models.StateIdle, EffectPromptStart)
}

// Reconcile corrects a stored state against the session store, which is
// authoritative for whether a session is active. A user whose session was
// finished by the counselor or an administrator is moved back to the menu.
func Reconcile(stored models.ConversationState, hasActiveSession bool) models.ConversationState {
	if hasActiveSession {
		return models.StateInChat
	}
	switch stored {
	case models.StateInChat:
		return models.StateSelectingCategory
	case models.StateSelectingCategory:
		return stored
	}
	return models.StateIdle
}
