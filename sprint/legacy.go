package sprint

import (
	"regexp"
	"strconv"
	"strings"
)

// nullToken marks an unset value in the legacy encoding.
const nullToken = "<null>"

// Older Jira versions serialise sprints as
// com.atlassian.greenhopper.service.sprint.Sprint@1a2b3c[id=1,rapidViewId=5,state=ACTIVE,name=...,startDate=...,...]
var (
	combinedPattern = regexp.MustCompile(
		`\[id=(\d+),name=([^,\]]*),state=([A-Za-z]+),startDate=([^,\]]*),endDate=([^,\]]*)`,
	)

	idPattern           = regexp.MustCompile(`[\[,]id=(\d+)`)
	namePattern         = regexp.MustCompile(`[\[,]name=([^,\]]*)`)
	statePattern        = regexp.MustCompile(`[\[,]state=([A-Za-z]+)`)
	startDatePattern    = regexp.MustCompile(`[\[,]startDate=([^,\]]*)`)
	endDatePattern      = regexp.MustCompile(`[\[,]endDate=([^,\]]*)`)
	completeDatePattern = regexp.MustCompile(`[\[,]completeDate=([^,\]]*)`)
	boardPattern        = regexp.MustCompile(`[\[,]rapidViewId=(\d+)`)
)

// LegacyDecoder decodes the string-encoded sprint references emitted by
// older Jira versions. Jira has changed this format between releases, so
// decoding is strict first and lenient second.
type LegacyDecoder struct{}

var _ Decoder = LegacyDecoder{}

// Decode tries the combined pattern, then falls back to one pattern per
// field and accepts the result when id, name and state were all found.
func (LegacyDecoder) Decode(s string) (Sprint, error) {
	if m := combinedPattern.FindStringSubmatch(s); m != nil {
		id, err := strconv.Atoi(m[1])
		if err != nil {
			return Sprint{}, &ParseError{Input: s, Reason: "invalid id"}
		}
		sp := Sprint{
			ID:           id,
			Name:         m[2],
			State:        State(strings.ToLower(m[3])),
			StartDate:    dateValue(m[4]),
			EndDate:      dateValue(m[5]),
			CompleteDate: dateValue(field(completeDatePattern, s)),
			BoardID:      board(s),
		}
		if sp.Name != "" {
			return sp, nil
		}
	}

	idStr := field(idPattern, s)
	name := field(namePattern, s)
	state := field(statePattern, s)
	if idStr == "" || name == "" || state == "" {
		return Sprint{}, &ParseError{Input: s, Reason: "missing id, name or state"}
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return Sprint{}, &ParseError{Input: s, Reason: "invalid id"}
	}
	return Sprint{
		ID:           id,
		Name:         name,
		State:        State(strings.ToLower(state)),
		StartDate:    dateValue(field(startDatePattern, s)),
		EndDate:      dateValue(field(endDatePattern, s)),
		CompleteDate: dateValue(field(completeDatePattern, s)),
		BoardID:      board(s),
	}, nil
}

func field(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

func dateValue(s string) string {
	if s == nullToken {
		return ""
	}
	return s
}

func board(s string) *int {
	v := field(boardPattern, s)
	if v == "" {
		return nil
	}
	id, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &id
}
