// Package booking drives the five-step appointment wizard an assisted user
// walks through: specialist, date, time, modality and confirmation.
package booking

import "fmt"

type State int

const (
	ChooseSpecialist State = iota + 1
	ChooseDate
	ChooseTime
	ChooseModality
	Confirm
	Submitted
)

var stateNames = map[State]string{
	ChooseSpecialist: "choose_specialist",
	ChooseDate:       "choose_date",
	ChooseTime:       "choose_time",
	ChooseModality:   "choose_modality",
	Confirm:          "confirm",
	Submitted:        "submitted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Step is the 1-based position shown to the user.
func (s State) Step() int {
	return int(s)
}

type Event string

const (
	EventNext   Event = "next"
	EventBack   Event = "back"
	EventSubmit Event = "submit"
)

type transition struct {
	from  State
	event Event
}

// transitions lists every legal move. Anything absent is rejected.
var transitions = map[transition]State{
	{ChooseSpecialist, EventNext}: ChooseDate,
	{ChooseDate, EventNext}:       ChooseTime,
	{ChooseTime, EventNext}:       ChooseModality,
	{ChooseModality, EventNext}:   Confirm,

	{ChooseDate, EventBack}:     ChooseSpecialist,
	{ChooseTime, EventBack}:     ChooseDate,
	{ChooseModality, EventBack}: ChooseTime,
	{Confirm, EventBack}:        ChooseModality,

	{Confirm, EventSubmit}: Submitted,
}

func next(from State, e Event) (State, bool) {
	to, ok := transitions[transition{from, e}]
	return to, ok
}
