package search

import "github.com/codemem/engine/errs"

var validationErr = errs.New(errs.KindValidation, "cross_project_consent_required",
	"filter has no project and AllowCrossProject is false; pin a project or pass WithCrossProjectConsent()")
