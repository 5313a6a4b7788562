package model

import "fmt"

// Agent types and names offered by the admin form's selector. A researcher
// agent writes a post from a topic; an artist agent writes a post around an
// image prompt.
const (
	AgentTypeResearcher = "blog_researcher_ai_agent"
	AgentTypeArtist     = "blog_artist_ai_agent"

	AgentNameTopicEngineer      = "topic_engineer"
	AgentNameTopicResearcher    = "topic_researcher"
	AgentNamePromptArtist       = "prompt_artist"
	AgentNameRandomPromptArtist = "random_prompt_artist"
)

// AgentCatalog maps each agent type to its valid agent names.
var AgentCatalog = map[string][]string{
	AgentTypeResearcher: {AgentNameTopicEngineer, AgentNameTopicResearcher},
	AgentTypeArtist:     {AgentNamePromptArtist, AgentNameRandomPromptArtist},
}

// ValidateAgent checks that the agent type exists and the name belongs to it.
func ValidateAgent(agentType, agentName string) error {
	names, ok := AgentCatalog[agentType]
	if !ok {
		return fmt.Errorf("unknown agent type: %q", agentType)
	}
	for _, n := range names {
		if n == agentName {
			return nil
		}
	}
	return fmt.Errorf("unknown agent name %q for type %q", agentName, agentType)
}
