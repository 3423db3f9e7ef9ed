package jobs

import (
	"bytes"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/outreach-cli/internal/model"
)

var paramsValidate = validator.New(validator.WithRequiredStructEnabled())

// ParseParamsYAML decodes job params written as YAML. Unknown keys are
// rejected.
func ParseParamsYAML(data []byte) (model.JobParams, error) {
	var p model.JobParams
	if len(bytes.TrimSpace(data)) == 0 {
		return p, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return p, eris.Wrap(err, "jobs: decode params yaml")
	}
	return p, nil
}

// ValidateParams checks params against the field rules and the
// requirements of the job type.
func ValidateParams(t model.JobType, p model.JobParams) error {
	if err := paramsValidate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fe.Namespace()+" failed "+fe.Tag())
			}
			return eris.Errorf("jobs: invalid params: %s", strings.Join(msgs, "; "))
		}
		return eris.Wrap(err, "jobs: validate params")
	}

	switch t {
	case model.JobDiscovery:
		if len(p.Queries) == 0 {
			return eris.New("jobs: invalid params: discovery requires at least one query")
		}
		if len(p.ProspectIDs) > 0 {
			return eris.New("jobs: invalid params: discovery does not take prospect_ids")
		}
	case model.JobSocialDiscovery:
		if len(p.Queries) == 0 {
			return eris.New("jobs: invalid params: social_discovery requires at least one query")
		}
		if p.Platform == "" || p.Platform == model.PlatformNone {
			return eris.New("jobs: invalid params: social_discovery requires a platform")
		}
	case model.JobEnrichment, model.JobVerification, model.JobDrafting, model.JobSend, model.JobFollowUp:
		if len(p.Queries) > 0 {
			return eris.Errorf("jobs: invalid params: %s does not take queries", t)
		}
	default:
		return eris.Errorf("jobs: unknown job type %q", t)
	}
	return nil
}
