package analyze

const extractSystem = `You are a research assistant analysing the recruiting-platform industry.
Structure only verifiable facts stated in the input text. Do not interpret, evaluate or infer.
Never invent information that is not in the input; write "unknown" instead.
Return exactly one JSON object and nothing else.`

const extractPrompt = `Extract the facts from the material below.

Output JSON schema:
{
  "source": string,
  "url": string,
  "date_in_text": string | null,
  "company": string | null,
  "facts": [
    {
      "what_happened": string,
      "is_new_or_change": "new" | "change" | "unknown",
      "related_area": string | null,
      "numbers": [{"name": string, "value": string}]
    }
  ],
  "uncertain": [string]
}

Rules:
- Only what the article or notice states. No speculation.
- Set company only when the text identifies one company; otherwise null.
- Keep numbers and metrics exactly as written in value.
- date_in_text is a date written in the text, otherwise null.

Input:
SOURCE: %s
URL: %s
TITLE: %s
TEXT:
%s`

const classifySystem = `You classify facts about the recruiting-platform market by strategic signal strength.
Judge only from the input fact. No speculation.
Return exactly one JSON object and nothing else.`

const classifyPrompt = `Classify the following fact (JSON).

Levels:
- A: pricing, revenue model, organisation changes, investment, core product changes
- B: feature updates, partnerships, target-segment expansion, product experiments
- C: campaigns, interviews, promotional messaging (weak strategic evidence)

Output JSON:
{
  "signal_level": "A" | "B" | "C",
  "reason": string,
  "is_event_like": "high" | "medium" | "low",
  "needs_followup": true | false
}

Fact:
%s`

const hypothesisSystem = `You are a strategy analyst for the recruiting-platform market.
Form hypotheses using only the input facts. Never state them as certain.
Return exactly one JSON object and nothing else.`

const hypothesisPrompt = `From the fact list below, infer the competitor's strategic intent as a hypothesis.

Rules:
- Hedge: use wording such as "likely" or "unlikely", never certainty
- Quote evidence only from the facts
- Always include falsifiers
- JSON only

Output JSON:
{
  "hypothesis": string,
  "evidence": [string],
  "alt_hypothesis": [string],
  "falsifiers": [string]
}

Facts (JSON array):
%s`

const responseSystem = `You lead recruiting business development strategy at %s.
Propose response options to a competitor hypothesis.
Return exactly one JSON object and nothing else.`

const responsePrompt = `Based on the competitor strategy hypothesis below, propose exactly three response options for %s.

Rules:
- Exactly three: do nothing / defensive / offensive
- Actions must be concrete, executable steps
- Include risks
- JSON only

Output JSON:
{
  "do_nothing": {"why": string, "risks": [string]},
  "defensive": {"actions": [string], "impact": string, "risks": [string]},
  "offensive": {"actions": [string], "impact": string, "risks": [string]}
}

Competitor hypothesis (JSON):
%s`
