package controller

import "fmt"

// ChoiceKind is the closed set of decisions the engine can request.
type ChoiceKind int

const (
	ChooseAction ChoiceKind = iota
	ChooseStart
	ChooseDiscard
	ChooseSave
	ChoosePlace
	ChoosePayment
	ChooseSettle
	ChooseTakeover
	ChooseDefend
	ChooseTrade
	ChooseConsume
	ChooseProduce
	ChooseYesNo
	ChooseAmount

	numChoiceKinds
)

var choiceKindNames = [numChoiceKinds]string{
	"action", "start", "discard", "save", "place", "payment", "settle",
	"takeover", "defend", "trade", "consume", "produce", "yesno", "amount",
}

// Valid reports whether k is part of the closed set.
func (k ChoiceKind) Valid() bool {
	return k >= 0 && k < numChoiceKinds
}

// String returns the short name of the kind.
func (k ChoiceKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}

	return choiceKindNames[k]
}

// FormatTag is a semantic presentation hint on a private message.
type FormatTag string

const (
	FormatNone     FormatTag = ""
	FormatBold     FormatTag = "bold"
	FormatPhase    FormatTag = "phase"
	FormatTakeover FormatTag = "takeover"
	FormatGoal     FormatTag = "goal"
	FormatPrestige FormatTag = "prestige"
	FormatVerbose  FormatTag = "verbose"
	FormatDiscard  FormatTag = "discard"
)

// Valid reports whether t is one of the known tags.
func (t FormatTag) Valid() bool {
	switch t {
	case FormatNone, FormatBold, FormatPhase, FormatTakeover, FormatGoal,
		FormatPrestige, FormatVerbose, FormatDiscard:
		return true
	default:
		return false
	}
}
