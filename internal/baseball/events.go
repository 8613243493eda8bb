package baseball

import "strings"

// EventTag names a batting or baserunning event as the feed's eventType vocabulary does.
type EventTag string

const (
	EventSingle                 EventTag = "single"
	EventDouble                 EventTag = "double"
	EventTriple                 EventTag = "triple"
	EventHomeRun                EventTag = "home_run"
	EventWalk                   EventTag = "walk"
	EventIntentWalk             EventTag = "intent_walk"
	EventHitByPitch             EventTag = "hit_by_pitch"
	EventStrikeout              EventTag = "strikeout"
	EventStrikeoutDoublePlay    EventTag = "strikeout_double_play"
	EventFieldOut               EventTag = "field_out"
	EventForceOut               EventTag = "force_out"
	EventGroundedIntoDoublePlay EventTag = "grounded_into_double_play"
	EventDoublePlay             EventTag = "double_play"
	EventTriplePlay             EventTag = "triple_play"
	EventFieldersChoice         EventTag = "fielders_choice"
	EventFieldersChoiceOut      EventTag = "fielders_choice_out"
	EventFieldError             EventTag = "field_error"
	EventSacFly                 EventTag = "sac_fly"
	EventSacBunt                EventTag = "sac_bunt"
	EventCatcherInterference    EventTag = "catcher_interf"
	EventStolenBase2B           EventTag = "stolen_base_2b"
	EventStolenBase3B           EventTag = "stolen_base_3b"
	EventStolenBaseHome         EventTag = "stolen_base_home"
	EventCaughtStealing2B       EventTag = "caught_stealing_2b"
	EventCaughtStealing3B       EventTag = "caught_stealing_3b"
	EventCaughtStealingHome     EventTag = "caught_stealing_home"
	EventPickoff1B              EventTag = "pickoff_1b"
	EventPickoff2B              EventTag = "pickoff_2b"
	EventPickoff3B              EventTag = "pickoff_3b"
	EventWildPitch              EventTag = "wild_pitch"
	EventPassedBall             EventTag = "passed_ball"
	EventBalk                   EventTag = "balk"
	EventDefensiveIndifference  EventTag = "defensive_indiff"
	EventOtherAdvance           EventTag = "other_advance"
	EventOtherOut               EventTag = "other_out"
)

// eventAliases maps display names that do not snake-case onto the eventType vocabulary.
var eventAliases = map[string]EventTag{
	"grounded_into_dp":       EventGroundedIntoDoublePlay,
	"strikeout_dp":           EventStrikeoutDoublePlay,
	"fielders_choice_out":    EventFieldersChoiceOut,
	"catcher_interference":   EventCatcherInterference,
	"defensive_indifference": EventDefensiveIndifference,
	"intentional_walk":       EventIntentWalk,
	"homer":                  EventHomeRun,
	"runner_out":             EventOtherOut,
	"sacrifice_fly":          EventSacFly,
	"sacrifice_bunt":         EventSacBunt,
	"error":                  EventFieldError,
}

// ParseEventTag normalizes a feed eventType or event display name.
// Values outside the known vocabulary are kept in snake_case.
func ParseEventTag(raw string) EventTag {
	key := snakeCase(raw)
	if key == "" {
		return ""
	}
	if alias, ok := eventAliases[key]; ok {
		return alias
	}
	return EventTag(key)
}

// IsHit reports whether the batting event credits the batter with a hit.
func (e EventTag) IsHit() bool {
	switch e {
	case EventSingle, EventDouble, EventTriple, EventHomeRun:
		return true
	}
	return false
}

// IsStolenBase reports whether the event is a successful steal of any base.
func (e EventTag) IsStolenBase() bool {
	return strings.HasPrefix(string(e), "stolen_base")
}

// EventTags is the multi-valued eventtype column.
type EventTags = TagSet[EventTag]

// MovementReason tags why a runner moved, independent of the batting event.
type MovementReason string

const (
	ReasonOnPlay                 MovementReason = "on_play"
	ReasonForce                  MovementReason = "force"
	ReasonStolenBase             MovementReason = "stolen_base"
	ReasonCaughtStealing         MovementReason = "caught_stealing"
	ReasonPickoff                MovementReason = "pickoff"
	ReasonWildPitch              MovementReason = "wild_pitch"
	ReasonPassedBall             MovementReason = "passed_ball"
	ReasonBalk                   MovementReason = "balk"
	ReasonDefensiveIndifference  MovementReason = "defensive_indifference"
	ReasonError                  MovementReason = "error"
	ReasonThrow                  MovementReason = "throw"
	ReasonRunnerPlaced           MovementReason = "runner_placed"
	ReasonInterference           MovementReason = "interference"
	ReasonRundown                MovementReason = "rundown"
	ReasonDoubledOff             MovementReason = "doubled_off"
	ReasonThrownOut              MovementReason = "thrown_out"
)

// reasonPrefixes is checked in order; longer, more specific prefixes first.
var reasonPrefixes = []struct {
	prefix string
	reason MovementReason
}{
	{"pickoff_caught_stealing", ReasonPickoff},
	{"pickoff", ReasonPickoff},
	{"caught_stealing", ReasonCaughtStealing},
	{"stolen_base", ReasonStolenBase},
	{"adv_play", ReasonOnPlay},
	{"adv_force", ReasonForce},
	{"force_out", ReasonForce},
	{"force", ReasonForce},
	{"adv_throw", ReasonThrow},
	{"adv_error", ReasonError},
	{"error", ReasonError},
	{"wild_pitch", ReasonWildPitch},
	{"passed_ball", ReasonPassedBall},
	{"balk", ReasonBalk},
	{"defensive_indiff", ReasonDefensiveIndifference},
	{"runner_placed", ReasonRunnerPlaced},
	{"interference", ReasonInterference},
	{"catcher_interf", ReasonInterference},
	{"rundown", ReasonRundown},
	{"doubled_off", ReasonDoubledOff},
	{"thrown_out", ReasonThrownOut},
	{"on_play", ReasonOnPlay},
}

// ParseMovementReason normalizes the feed's movementReason ("r_stolen_base_2b",
// "r_adv_play", ...). Unrecognized reasons are kept in snake_case without the r_ prefix.
func ParseMovementReason(raw string) MovementReason {
	key := snakeCase(raw)
	key = strings.TrimPrefix(key, "r_")
	if key == "" {
		return ""
	}
	for _, p := range reasonPrefixes {
		if strings.HasPrefix(key, p.prefix) {
			return p.reason
		}
	}
	return MovementReason(key)
}

// AllowsRegression reports whether a runner may legally end behind the base it started on.
func (r MovementReason) AllowsRegression() bool {
	return r == ReasonRundown || r == ReasonPickoff
}

// MovementReasons is the multi-valued movementreason column.
type MovementReasons = TagSet[MovementReason]
