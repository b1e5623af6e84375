package stub

import (
	"time"

	"aidm/internal/domain"
)

// The creation scripts fold each player answer into the state and ask for
// the next attribute, completing once every field is filled.

type worldStep struct {
	prompt string
	apply  func(*domain.WorldState, string)
}

type characterStep struct {
	prompt string
	apply  func(*domain.CharacterState, string)
}

var worldScript = []worldStep{
	{
		prompt: "What shall your world be called?",
		apply:  func(w *domain.WorldState, in string) { w.Name = in },
	},
	{
		prompt: "Vivid. And the land itself - mountains, seas, endless forest?",
		apply:  func(w *domain.WorldState, in string) { w.Geography = in },
	},
	{
		prompt: "What great events shaped this place before your story begins?",
		apply:  func(w *domain.WorldState, in string) { w.History = in },
	},
	{
		prompt: "Who lives here, and how do their cultures differ?",
		apply:  func(w *domain.WorldState, in string) { w.Cultures = in },
	},
	{
		prompt: "Finally, does magic flow through this world, and by what rules?",
		apply:  func(w *domain.WorldState, in string) { w.MagicSystem = in },
	},
}

var characterScript = []characterStep{
	{
		prompt: "The world stands ready. Now, who are you? Give your hero a name.",
		apply:  func(c *domain.CharacterState, in string) { c.Name = in },
	},
	{
		prompt: "And how would a stranger describe you at first glance?",
		apply:  func(c *domain.CharacterState, in string) { c.PhysicalAppearance = in },
	},
	{
		prompt: "Where do you come from? What life did you leave behind?",
		apply:  func(c *domain.CharacterState, in string) { c.Background = in },
	},
	{
		prompt: "What drives you onto the road - gold, glory, guilt?",
		apply:  func(c *domain.CharacterState, in string) { c.InternalMotivation = in },
	},
	{
		prompt: "One last thing: what sets you apart from every other wanderer?",
		apply:  func(c *domain.CharacterState, in string) { c.UniqueTraits = in },
	},
}

var narratives = []string{
	"The tavern door creaks shut behind you. Rain hammers the shutters while a hooded figure in the corner studies you over an untouched mug of ale. What do you do?",
	"Thunder rolls as you step into the muddy street. A courier sprints past, drops a sealed letter at your feet, and vanishes into the storm.",
	"The letter bears the sigil of the old keep on the hill. Its gates, sealed for a generation, now stand ajar, and torchlight flickers within.",
	"Inside the keep, dust dances in the torchlight. Somewhere below, stone grinds against stone, and a voice older than the walls whispers your name.",
}

// advanceWorld applies the player's answer to the world script. The opening
// dispatch (step 0) only greets; answers start counting from the first real
// question.
func advanceWorld(sess *session, input string) (reply string, complete bool) {
	if sess.worldComplete() {
		return "The world is already complete. Its story waits for its hero.", true
	}
	// The opening greeting fills nothing; it only draws the first question.
	if !sess.worldOpened {
		sess.worldOpened = true
		return worldScript[sess.worldStep].prompt, false
	}
	worldScript[sess.worldStep].apply(&sess.world, input)
	sess.worldStep++
	if sess.worldComplete() {
		return "The world takes its final shape. I can see it clearly now - let us find out who walks it.", true
	}
	return worldScript[sess.worldStep].prompt, false
}

// advanceCharacter mirrors advanceWorld for the character script.
func advanceCharacter(sess *session, input string) (reply string, complete bool) {
	if sess.characterComplete() {
		return "Your hero is already fully formed and pacing impatiently.", true
	}
	if !sess.charOpened {
		sess.charOpened = true
		return characterScript[sess.charStep].prompt, false
	}
	characterScript[sess.charStep].apply(&sess.character, input)
	sess.charStep++
	if sess.characterComplete() {
		sess.charDoneAt = time.Now()
		return "Your hero steps out of the mist, fully formed. Give me a moment to set the stage.", true
	}
	return characterScript[sess.charStep].prompt, false
}
