package e2e

import "fmt"

// Fact is one document of the corpus: a single sentence with vocabulary no other fact uses,
// so asking the sentence back must retrieve its own file first.
type Fact struct {
	Name     string
	Sentence string
}

var sentences = []string{
	"Orchards near Valmora harvest quince every October under amber skies",
	"Submarine cartographers chart basalt trenches using sonar pulses",
	"Glassblowers shape cobalt vases inside roaring furnaces",
	"Beekeepers relocate hives when lavender fields bloom early",
	"Astronomers catalogue pulsars through radio telescopes at midnight",
	"Carpenters join walnut cabinets without nails or glue",
	"Falconers train peregrines to return whistles across moorland",
	"Cheesemakers age gruyere wheels within limestone caves",
	"Locksmiths pick brass padlocks using tension wrenches",
	"Vintners ferment riesling grapes inside steel tanks",
	"Glaciologists drill ice cores recording ancient atmospheres",
	"Potters fire terracotta urns in wood kilns overnight",
	"Cyclists climb alpine switchbacks during summer stages",
	"Tailors stitch tweed jackets measuring shoulders twice",
	"Volcanologists sample sulfur vents wearing gas masks",
	"Librarians restore crumbling manuscripts with wheat paste",
}

// BuildCorpus assigns the sentences round-robin to the fixture file types.
func BuildCorpus() []Fact {
	facts := make([]Fact, len(sentences))
	for i, s := range sentences {
		ext := FixtureExtensions[i%len(FixtureExtensions)]
		facts[i] = Fact{Name: fmt.Sprintf("fact-%02d%s", i, ext), Sentence: s}
	}
	return facts
}
