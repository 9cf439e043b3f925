package jira

// Custom field ids of the Jira Cloud instance the dashboard was built for.
const (
	SprintField      = "customfield_10020"
	StoryPointsField = "customfield_10016"
	StartDateField   = "customfield_10015"
)

// PageSize is the number of issues requested per search page.
const PageSize = 100

// StandardFields are the system fields every search requests.
var StandardFields = []string{
	"summary",
	"description",
	"status",
	"issuetype",
	"project",
	"priority",
	"assignee",
	"reporter",
	"labels",
	"components",
	"created",
	"updated",
	"resolutiondate",
	"duedate",
	"timeoriginalestimate",
	"timespent",
	"timeestimate",
	"aggregatetimeoriginalestimate",
	"aggregatetimespent",
	"aggregatetimeestimate",
	"worklog",
	"parent",
	SprintField,
	StoryPointsField,
	StartDateField,
}

// DefaultExtensionFields are the custom fields the chart views read
// (cost center, budget, salary band, headcount, risk likelihood and
// impact, epic link). Their values are passed through verbatim.
var DefaultExtensionFields = []string{
	"customfield_12326",
	"customfield_12327",
	"customfield_12328",
	"customfield_12329",
	"customfield_12330",
	"customfield_12331",
	"customfield_10014",
}

// RequestFields returns the full field list for a search: the standard
// fields followed by the given extension fields, without duplicates.
func RequestFields(extensions []string) []string {
	seen := make(map[string]struct{}, len(StandardFields)+len(extensions))
	out := make([]string, 0, len(StandardFields)+len(extensions))
	for _, list := range [][]string{StandardFields, extensions} {
		for _, f := range list {
			if f == "" {
				continue
			}
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}
