package engine

const (
	DieFaces       = 6
	BonusRollValue = 6
	MinPlayers     = 2
	MaxPlayers     = 4
	BotIDPrefix    = "bot-"
)

var PlayerColors = []string{
	"#FF6B6B",
	"#4ECDC4",
	"#45B7D1",
	"#96CEB4",
	"#FFEAA7",
	"#DDA0DD",
	"#FF8C00",
	"#9370DB",
}

var BotNames = []string{"Bot Alice", "Bot Bob", "Bot Charlie", "Bot Dana"}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
