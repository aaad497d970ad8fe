package transcript

import "strings"

// AgentIDPrefix marks participant IDs created for the AI interviewer.
const AgentIDPrefix = "agent-"

// ClassifySpeaker decides whether a session participant is the AI
// interviewer or the human candidate. Detection is a name/ID heuristic until
// the media provider carries an explicit role flag, so it lives behind this
// single function.
func ClassifySpeaker(speakerID, displayName string) Role {
	if strings.HasPrefix(speakerID, AgentIDPrefix) {
		return RoleAgent
	}
	name := strings.ToLower(displayName)
	if strings.Contains(name, "interviewer") || strings.Contains(name, "ai") {
		return RoleAgent
	}
	return RoleHuman
}
