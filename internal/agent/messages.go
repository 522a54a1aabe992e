package agent

import (
	"fmt"
	"strings"

	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/scenario"
)

// greetingText opens every session before any scenario is revealed.
const greetingText = "السلام علیکم! میں UMAR ہوں، آپ کا AI تربیتی معاون۔ میں مختلف کسٹمرز کا کردار ادا کروں گا تاکہ آپ اپنی مہارت بہتر بنا سکیں۔ کیا آپ تیار ہیں؟"

const greetingRoman = "Assalam-o-Alaikum! Main UMAR hoon, aap ka AI training assistant. Main mukhtalif customers ka kirdar ada karunga taake aap apni maharat behtar bana sakein. Kya aap tayyar hain?"

// clarifyText is spoken when the trainee's intro answer is not an
// affirmative; the session stays in the introduction stage.
const clarifyText = `کوئی بات نہیں۔ جب آپ تیار ہوں تو "ہاں" یا "تیار ہوں" کہیں۔`

const clarifyRoman = `Koi baat nahin. Jab aap tayyar hon to "haan" ya "tayyar hoon" kahein.`

// affirmatives are matched as lowercase substrings of the trainee's intro
// reply. Mixed Urdu script and Roman Urdu on purpose: the transcription can
// return either.
var affirmatives = []string{
	"yes", "ہاں", "han", "تیار", "tayyar", "ready", "haan", "ji", "جی",
}

// isAffirmative reports whether the intro reply counts as "ready".
func isAffirmative(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range affirmatives {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func announcementText(sc scenario.Scenario) string {
	return fmt.Sprintf("بہت اچھا! میں اب %s کا کردار ادا کروں گا۔ %s۔ آئیے شروع کریں۔", sc.NameUrdu, sc.DescriptionUrdu)
}

func announcementRoman(sc scenario.Scenario) string {
	return fmt.Sprintf("Bohat acha! Main ab %s ka kirdar ada karunga. %s. Aiye shuru karein.", sc.Name, sc.Description)
}
