package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	"routeplanner/internal/model"
)

// requestValidator wraps a validator with English messages for problem details.
type requestValidator struct {
	v     *validator.Validate
	trans ut.Translator
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(v, trans)
	return &requestValidator{v: v, trans: trans}
}

// Struct validates tags, then the cross-field rules tags cannot express.
func (rv *requestValidator) Struct(s any) error {
	if err := rv.v.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fe.Translate(rv.trans))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	if req, ok := s.(*model.SolveRequest); ok {
		return validateSolveRequest(req)
	}
	return nil
}

func validateSolveRequest(req *model.SolveRequest) error {
	for i, st := range req.Stops {
		if st.WindowEnd < st.WindowStart {
			return fmt.Errorf("stops[%d]: windowEnd %d before windowStart %d", i, st.WindowEnd, st.WindowStart)
		}
	}
	n := len(req.Stops)
	for name, m := range map[string][][]int{"distanceMatrix": req.DistanceMatrix, "timeMatrix": req.TimeMatrix} {
		if m != nil && len(m) != n {
			return fmt.Errorf("%s has %d rows for %d stops", name, len(m), n)
		}
	}
	if req.TimeMatrix != nil && req.DistanceMatrix == nil {
		return errors.New("timeMatrix requires distanceMatrix")
	}
	if f := req.Fleet; f != nil {
		for name, caps := range map[string][]int{"volumeCapacities": f.VolumeCapacities, "weightCapacities": f.WeightCapacities} {
			if len(caps) != 1 && len(caps) != f.Vehicles {
				return fmt.Errorf("fleet.%s needs 1 or %d entries, got %d", name, f.Vehicles, len(caps))
			}
		}
	}
	return nil
}
