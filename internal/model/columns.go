package model

import "sort"

// Prospect columns that may be missing from older schemas.
const (
	ColSourcePlatform = "source_platform"
	ColProfileURL     = "profile_url"
	ColUsername       = "username"
	ColStage          = "stage"
	ColFinalBody      = "final_body"
	ColThreadID       = "thread_id"
	ColSequenceIndex  = "sequence_index"
	ColFollowupsSent  = "followups_sent"
	ColLastSent       = "last_sent"
	ColPageTitle      = "page_title"
	ColPageURL        = "page_url"
	ColSnippet        = "snippet"
	ColRawPayload     = "raw_payload"
	ColScore          = "score"
	ColDAEst          = "da_est"
	ColSERPIntent     = "serp_intent"
	ColSERPConfidence = "serp_confidence"
	ColSERPSignals    = "serp_signals"
	ColLastError      = "last_error"
	ColVersion        = "version"
)

// RequiredColumns exist in every supported prospects schema.
var RequiredColumns = []string{
	"id", "source_type", "domain", "contact_email", "contact_method",
	"discovery_status", "scrape_status", "verification_status", "draft_status", "send_status",
	"draft_subject", "draft_body", "created_at", "updated_at",
}

// OptionalColumns may or may not exist depending on schema version.
var OptionalColumns = []string{
	ColSourcePlatform, ColProfileURL, ColUsername, ColStage,
	ColFinalBody, ColThreadID, ColSequenceIndex, ColFollowupsSent, ColLastSent,
	ColPageTitle, ColPageURL, ColSnippet,
	ColRawPayload, ColScore, ColDAEst, ColSERPIntent, ColSERPConfidence, ColSERPSignals,
	ColLastError, ColVersion,
}

// ColumnSet records which prospect columns the connected schema provides.
// It is negotiated once per store and passed explicitly to read and write
// paths.
type ColumnSet struct {
	cols map[string]struct{}
}

// NewColumnSet builds a set from detected column names. Required columns
// are always included; unknown names are ignored.
func NewColumnSet(names ...string) ColumnSet {
	known := make(map[string]struct{}, len(OptionalColumns))
	for _, c := range OptionalColumns {
		known[c] = struct{}{}
	}
	cs := ColumnSet{cols: make(map[string]struct{}, len(RequiredColumns)+len(names))}
	for _, c := range RequiredColumns {
		cs.cols[c] = struct{}{}
	}
	for _, n := range names {
		if _, ok := known[n]; ok {
			cs.cols[n] = struct{}{}
		}
	}
	return cs
}

// SafeColumnSet is the fallback projection with required columns only.
func SafeColumnSet() ColumnSet {
	return NewColumnSet()
}

// FullColumnSet includes every known column.
func FullColumnSet() ColumnSet {
	return NewColumnSet(OptionalColumns...)
}

// Has reports whether column c is available.
func (cs ColumnSet) Has(c string) bool {
	_, ok := cs.cols[c]
	return ok
}

// Optional returns the available optional columns, sorted.
func (cs ColumnSet) Optional() []string {
	var out []string
	for _, c := range OptionalColumns {
		if cs.Has(c) {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// Missing returns the optional columns the schema lacks, sorted.
func (cs ColumnSet) Missing() []string {
	var out []string
	for _, c := range OptionalColumns {
		if !cs.Has(c) {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// SupportsFollowUps reports whether threaded follow-ups can be recorded.
func (cs ColumnSet) SupportsFollowUps() bool {
	return cs.Has(ColThreadID) && cs.Has(ColSequenceIndex) && cs.Has(ColFollowupsSent) && cs.Has(ColLastSent)
}
