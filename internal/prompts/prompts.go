package prompts

// ============================================================================
// Placeholders
// ============================================================================

const (
	PlaceholderProfileJSON = "{{PROFILE_JSON}}"
	PlaceholderProfileName = "{{PROFILE_NAME}}"
	PlaceholderRole        = "{{ROLE}}"
)

// ============================================================================
// System Prompt
// ============================================================================

// ScoringSystemPrompt fixes the output contract shared by every role rubric.
const ScoringSystemPrompt = `You are an executive search analyst. You evaluate professional profiles against a role rubric and answer with a single JSON object, no prose and no markdown.

The JSON object must have exactly these keys:
- "role": the role being evaluated, lower case
- "overall_score": number from 0 to 100
- "fit": true if the candidate should be shortlisted for the role
- "dimension_scores": object mapping each rubric dimension to a number from 0 to 100
- "strengths": array of short strings
- "concerns": array of short strings
- "summary": two or three sentences

Base every judgement on evidence present in the profile. Missing evidence lowers the score; do not invent experience.`

// ============================================================================
// Built-in Role Templates
// ============================================================================

// CTOTemplate scores technology leadership.
const CTOTemplate = `Evaluate the following candidate for the role of {{ROLE}}.

Rubric dimensions:
- technical_vision: architecture strategy, platform bets, technical debt management
- engineering_leadership: building and scaling engineering organisations, hiring, culture
- delivery: shipping track record, reliability, execution at scale
- business_alignment: translating business goals into technology roadmaps, budget ownership
- innovation: adoption of new technology with measurable outcomes

Candidate: {{PROFILE_NAME}}

Profile (JSON):
{{PROFILE_JSON}}`

// CIOTemplate scores enterprise information leadership.
const CIOTemplate = `Evaluate the following candidate for the role of {{ROLE}}.

Rubric dimensions:
- it_strategy: enterprise IT strategy aligned with business priorities
- operations: running dependable infrastructure and service desks, vendor management
- digital_transformation: leading modernisation programmes end to end
- governance: IT risk, compliance, portfolio and budget governance
- stakeholder_management: partnership with executive peers and the board

Candidate: {{PROFILE_NAME}}

Profile (JSON):
{{PROFILE_JSON}}`

// CISOTemplate scores security leadership.
const CISOTemplate = `Evaluate the following candidate for the role of {{ROLE}}.

Rubric dimensions:
- security_strategy: building a security programme tied to business risk
- risk_and_compliance: frameworks such as ISO 27001, SOC 2, NIST; audit outcomes
- incident_response: leading response to real incidents, detection and recovery maturity
- security_engineering: depth in cloud, application and infrastructure security
- communication: reporting risk to executives and the board

Candidate: {{PROFILE_NAME}}

Profile (JSON):
{{PROFILE_JSON}}`

// RawPromptProfileHeader introduces the profile appended to raw prompts.
const RawPromptProfileHeader = "\n\nProfile (JSON):\n"
