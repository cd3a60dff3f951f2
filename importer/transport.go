package importer

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/agrifocus/plantation_backend/config"
	"bitbucket.org/agrifocus/plantation_backend/models"
	"bitbucket.org/agrifocus/plantation_backend/reconcile"
	"bitbucket.org/agrifocus/plantation_backend/utils"
)

// ResolveTransportCompanies previews how a batch of raw company names
// would resolve against the company masters. Nothing is written; the
// result carries unresolved names with suggestions for the confirm step.
func ResolveTransportCompanies(ctx context.Context, names []string) (reconcile.ResolveResult, error) {
	registry := reconcile.NewRegistry()
	masters, err := models.TransportCompanyMasters(ctx)
	if err != nil {
		return reconcile.ResolveResult{}, err
	}
	registry.Load(reconcile.EntityTypeCompany, masters)

	resolver := reconcile.NewResolver(models.AliasStore{})
	return resolver.Resolve(ctx, reconcile.EntityTypeCompany, names, registry)
}

// ConfirmCompanyAliases commits human-confirmed raw-name mappings so the
// next run resolves them without review.
func ConfirmCompanyAliases(ctx context.Context, mappings []models.AliasMapping) (models.AliasBatchResult, error) {
	userName, _ := utils.GetUserNameFromContext(ctx)
	if len(mappings) == 0 {
		return models.AliasBatchResult{}, errors.New("no mappings provided")
	}
	return models.SaveAliasBatch(ctx, reconcile.EntityTypeCompany, mappings, userName), nil
}

// RunTransportImport executes one transport import end to end. Company
// names are resolved through aliases and the matcher; names still
// unresolved fail the run (transport companies are never auto-created,
// they carry contact data a sheet cannot supply).
func RunTransportImport(ctx context.Context, rows [][]string, sourceFileUrl string) (*reconcile.Run, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	release, err := utils.BusinessLock(ctx, businessId, "import", "transport.go", "RunTransportImport")
	if err != nil {
		return nil, err
	}
	defer release()

	header, err := models.CreateImportRun(ctx, models.ImportTypeTransport, sourceFileUrl)
	if err != nil {
		return nil, err
	}
	run := reconcile.NewRun(header.RunId)

	parsed, rowErrors, err := ParseTransportRows(rows)
	if err != nil {
		run.Fail(err.Error())
		finishRun(ctx, run, models.ImportTypeTransport)
		return run, nil
	}
	run.InvalidCount = len(rowErrors)
	for _, re := range rowErrors {
		run.Failures = append(run.Failures, reconcile.Failure{
			NaturalKey: rowKey(re.Row),
			Error:      re.Error,
		})
	}

	_ = run.To(reconcile.RunStateValidating)
	_ = models.UpdateImportRunStatus(ctx, run.ID, run.State)

	var companyNames []string
	for _, r := range parsed {
		companyNames = append(companyNames, r.CompanyName)
	}

	companyRes, err := ResolveTransportCompanies(ctx, companyNames)
	if err != nil {
		run.Fail(err.Error())
		finishRun(ctx, run, models.ImportTypeTransport)
		return run, nil
	}
	if len(companyRes.Unresolved) > 0 {
		run.Unresolved = companyRes.Unresolved
		run.Fail("unresolved company names; confirm aliases first")
		finishRun(ctx, run, models.ImportTypeTransport)
		return run, nil
	}
	companyIds := resolvedNameIds(companyRes)

	candidates := make([]models.TransportLog, 0, len(parsed))
	keys := make(map[string]bool)
	var dates []time.Time
	for _, r := range parsed {
		companyId, okCompany := companyIds[strings.ToLower(r.CompanyName)]
		if !okCompany {
			run.InvalidCount++
			run.Failures = append(run.Failures, reconcile.Failure{
				NaturalKey: rowKey(r.Row),
				Error:      "company name did not resolve to a master record",
			})
			continue
		}
		c := models.TransportLog{
			BusinessId:         businessId,
			LogDate:            r.LogDate,
			TicketNumber:       r.TicketNumber,
			TransportCompanyId: companyId,
			VehiclePlate:       r.VehiclePlate,
			Destination:        r.Destination,
			Tonnage:            r.Tonnage,
		}
		candidates = append(candidates, c)
		keys[c.NaturalKey()] = true
		dates = append(dates, r.LogDate)
	}

	existing, err := models.GetTransportLogsByNaturalKeys(ctx, keys, dates)
	if err != nil {
		run.Fail(err.Error())
		finishRun(ctx, run, models.ImportTypeTransport)
		return run, nil
	}

	outcome := reconcile.Classify(candidates, existing, reconcile.ClassifyOptions[models.TransportLog, models.TransportLog]{
		ExistingID: func(e models.TransportLog) int { return e.ID },
		Equal:      transportEqual,
		SameAs:     transportEqual,
	})
	run.DuplicateCount = outcome.Duplicate

	_ = run.To(reconcile.RunStateApplying)
	_ = models.UpdateImportRunStatus(ctx, run.ID, run.State)

	writer := func(ctx context.Context, rec reconcile.Classified[models.TransportLog]) error {
		c := rec.Candidate
		return models.UpsertTransportLog(ctx, &c, rec.ExistingID)
	}
	// One write per natural key; later rows for a key supersede earlier ones.
	err = reconcile.ApplyChunked(ctx, run, reconcile.CollapseWritable(outcome.Writable()),
		config.ImportChunkSize(), config.ImportConcurrency(), writer,
		func(p reconcile.Progress) { storeProgress(run.ID, p) })
	if err != nil {
		run.Fail("run canceled: " + err.Error())
		finishRun(ctx, run, models.ImportTypeTransport)
		return run, nil
	}

	_ = run.To(reconcile.RunStateDone)
	finishRun(ctx, run, models.ImportTypeTransport)
	return run, nil
}
