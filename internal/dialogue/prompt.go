package dialogue

import (
	"fmt"
	"strings"

	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/transcript"
)

// conversationRules shapes every customer reply toward short, natural phone
// speech. Appended to the scenario's persona prompt on every request.
const conversationRules = `

CONVERSATION STYLE - THIS IS CRITICAL:
1. Keep responses SHORT and natural (1-2 sentences typically, max 3 if explaining something)
2. Talk like a REAL person on a phone call, not a script
3. Use natural fillers occasionally: "ہاں...", "دیکھیں...", "اچھا..."
4. React to what the agent JUST said - don't repeat your whole story
5. One thought per response - don't pile multiple topics together
6. If asking a question, just ask ONE question at a time
7. Show emotion through tone, not long explanations

WHAT MAKES IT FEEL REAL:
- Interrupt yourself sometimes: "میرا bill... یعنی وہ جو آیا ہے..."
- React with short acknowledgments: "ہاں ٹھیک ہے", "اچھا", "پھر؟"
- Express confusion briefly: "مجھے سمجھ نہیں آیا"
- Show impatience naturally: "ہاں ہاں، پھر؟" or "اور؟"

ADAPTING TO THE AGENT:
- If agent is helpful and empathetic → warm up, be cooperative
- If agent is robotic/scripted → show slight annoyance
- If agent asks good questions → answer willingly
- If agent repeats themselves → "یہ تو آپ نے بتایا، آگے بتائیں"
- If agent is rude → react accordingly (hurt/angry depending on persona)
- If agent solves something → acknowledge it naturally`

const openingInstructions = `

FIRST MESSAGE INSTRUCTIONS:
- Just greet and state your issue briefly (2-3 short sentences max)
- Don't explain everything upfront - let the conversation unfold
- Example length: "السلام علیکم، میرا نام احمد ہے، میں اپنے bill کے بارے میں call کر رہا ہوں۔ بہت زیادہ آیا ہے۔"`

const endingCatalogue = `

WHEN TO END THE CALL (add [END_CALL] at the end):

POSITIVE ENDINGS:
- Agent solved the problem → "بہت شکریہ، مسئلہ حل ہو گیا" [END_CALL]
- Got a satisfactory answer → "اچھا ٹھیک ہے، شکریہ آپ کا" [END_CALL]
- Received reference number/promise → "ٹھیک ہے، میں انتظار کرتا ہوں" [END_CALL]
- Agent was very helpful → express genuine thanks and end [END_CALL]

NEUTRAL ENDINGS:
- Need to think about it → "میں سوچ کر بتاتا ہوں، شکریہ" [END_CALL]
- Will try suggested solution → "اچھا میں try کرتا ہوں، شکریہ" [END_CALL]
- Agreed to visit service center → "ٹھیک ہے میں آ جاتا ہوں" [END_CALL]

FRUSTRATED ENDINGS (after 5+ exchanges with no progress):
- Same answers repeated → "آپ وہی بات کر رہے ہیں، میں کہیں اور call کرتا ہوں" [END_CALL]
- Agent unhelpful → "شکریہ، میں supervisor سے بات کروں گا" [END_CALL]
- Giving up for now → "ٹھیک ہے بعد میں call کرتا ہوں" [END_CALL]
- Very frustrated → "میں complaint کروں گا" [END_CALL]

IMPORTANT:
- Don't end abruptly without a natural closing phrase
- Don't drag on if the issue is resolved or clearly won't be resolved
- If conversation exceeds 8-10 exchanges, seriously consider wrapping up
- Trust your judgment on when the conversation has run its course`

// historyText flattens the transcript into AGENT/CUSTOMER labelled lines.
func historyText(history []transcript.Utterance) string {
	var b strings.Builder
	for i, u := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		label := "CUSTOMER"
		if u.Role == transcript.RoleAgent {
			label = "AGENT"
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(u.Text)
	}
	return b.String()
}

// phaseGuidance nudges the customer through a realistic call arc based on how
// many times the agent has spoken.
func phaseGuidance(exchangeCount int) string {
	switch {
	case exchangeCount < 3:
		return "- EARLY: Still explaining issue, asking questions, building rapport"
	case exchangeCount < 7:
		return "- MIDDLE: Working towards resolution, patience may vary based on agent helpfulness"
	default:
		return "- EXTENDED: Either close to resolution OR losing patience - time to wrap up naturally"
	}
}

func buildSystemPrompt(req Request) string {
	base := req.Scenario.SystemPrompt + conversationRules
	if req.Opening {
		return base + openingInstructions
	}
	exchangeCount := 0
	for _, u := range req.History {
		if u.Role == transcript.RoleAgent {
			exchangeCount++
		}
	}
	return base + fmt.Sprintf(`

CONVERSATION SO FAR (%d exchanges):
%s

CURRENT CONVERSATION PHASE:
%s`, exchangeCount, historyText(req.History), phaseGuidance(exchangeCount)) + endingCatalogue
}

func buildUserPrompt(req Request) string {
	if req.Opening {
		return "Start the call. Be brief and natural - just greet and state your basic issue."
	}
	return fmt.Sprintf(`Agent's response: %q

Reply naturally (1-2 sentences). If it's time to end, include [END_CALL] at the end.`, req.AgentText)
}
