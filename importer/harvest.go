package importer

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/agrifocus/plantation_backend/config"
	"bitbucket.org/agrifocus/plantation_backend/models"
	"bitbucket.org/agrifocus/plantation_backend/reconcile"
	"bitbucket.org/agrifocus/plantation_backend/utils"
)

// RunHarvestImport executes one harvest import end to end: parse, resolve
// division and block names, classify against existing rows, apply in
// chunks. At most one import runs per business at a time.
func RunHarvestImport(ctx context.Context, rows [][]string, sourceFileUrl string) (*reconcile.Run, error) {
	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	release, err := utils.BusinessLock(ctx, businessId, "import", "harvest.go", "RunHarvestImport")
	if err != nil {
		return nil, err
	}
	defer release()

	header, err := models.CreateImportRun(ctx, models.ImportTypeHarvest, sourceFileUrl)
	if err != nil {
		return nil, err
	}
	run := reconcile.NewRun(header.RunId)

	parsed, rowErrors, err := ParseHarvestRows(rows)
	if err != nil {
		run.Fail(err.Error())
		finishRun(ctx, run, models.ImportTypeHarvest)
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

	registry := reconcile.NewRegistry()
	divisionMasters, err := models.DivisionMasters(ctx)
	if err != nil {
		run.Fail(err.Error())
		finishRun(ctx, run, models.ImportTypeHarvest)
		return run, nil
	}
	blockMasters, err := models.BlockMasters(ctx)
	if err != nil {
		run.Fail(err.Error())
		finishRun(ctx, run, models.ImportTypeHarvest)
		return run, nil
	}
	registry.Load(reconcile.EntityTypeDivision, divisionMasters)
	registry.Load(reconcile.EntityTypeBlock, blockMasters)

	var divisionNames, blockNames []string
	for _, r := range parsed {
		divisionNames = append(divisionNames, r.DivisionName)
		blockNames = append(blockNames, r.BlockName)
	}

	resolver := reconcile.NewResolver(models.AliasStore{})
	divisionRes, err := resolver.Resolve(ctx, reconcile.EntityTypeDivision, divisionNames, registry)
	if err != nil {
		run.Fail(err.Error())
		finishRun(ctx, run, models.ImportTypeHarvest)
		return run, nil
	}
	blockRes, err := resolver.Resolve(ctx, reconcile.EntityTypeBlock, blockNames, registry)
	if err != nil {
		run.Fail(err.Error())
		finishRun(ctx, run, models.ImportTypeHarvest)
		return run, nil
	}

	divisionIds := resolvedNameIds(divisionRes)
	blockIds := resolvedNameIds(blockRes)

	unresolved := append(append([]reconcile.Resolution{}, divisionRes.Unresolved...), blockRes.Unresolved...)
	if len(unresolved) > 0 {
		if !config.AutoCreateMasters() {
			run.Unresolved = unresolved
			run.Fail("unresolved names; confirm aliases or enable auto-create")
			finishRun(ctx, run, models.ImportTypeHarvest)
			return run, nil
		}

		_ = run.To(reconcile.RunStateCreatingMasters)
		_ = models.UpdateImportRunStatus(ctx, run.ID, run.State)

		if err := createMissingMasters(ctx, parsed, divisionRes.Unresolved, blockRes.Unresolved, registry, divisionIds, blockIds); err != nil {
			config.LogError(logger, "harvest.go", "RunHarvestImport", "auto-create masters", businessId, err)
			run.Fail(err.Error())
			finishRun(ctx, run, models.ImportTypeHarvest)
			return run, nil
		}
	}

	candidates := make([]models.HarvestRecord, 0, len(parsed))
	keys := make(map[string]bool)
	var dates []time.Time
	var divisionIdList []int
	for _, r := range parsed {
		divisionId, okDiv := divisionIds[strings.ToLower(r.DivisionName)]
		blockId, okBlock := blockIds[strings.ToLower(r.BlockName)]
		if !okDiv || !okBlock {
			run.InvalidCount++
			run.Failures = append(run.Failures, reconcile.Failure{
				NaturalKey: rowKey(r.Row),
				Error:      "name did not resolve to a master record",
			})
			continue
		}
		c := models.HarvestRecord{
			BusinessId:  businessId,
			HarvestDate: r.HarvestDate,
			DivisionId:  divisionId,
			BlockId:     blockId,
			Tonnage:     r.Tonnage,
			BunchCount:  r.BunchCount,
		}
		candidates = append(candidates, c)
		keys[c.NaturalKey()] = true
		dates = append(dates, r.HarvestDate)
		divisionIdList = append(divisionIdList, divisionId)
	}

	existing, err := models.GetHarvestRecordsByNaturalKeys(ctx, keys, dates, divisionIdList)
	if err != nil {
		run.Fail(err.Error())
		finishRun(ctx, run, models.ImportTypeHarvest)
		return run, nil
	}

	outcome := reconcile.Classify(candidates, existing, reconcile.ClassifyOptions[models.HarvestRecord, models.HarvestRecord]{
		ExistingID: func(e models.HarvestRecord) int { return e.ID },
		Equal:      harvestEqual,
		SameAs:     harvestEqual,
	})
	run.DuplicateCount = outcome.Duplicate

	_ = run.To(reconcile.RunStateApplying)
	_ = models.UpdateImportRunStatus(ctx, run.ID, run.State)

	writer := func(ctx context.Context, rec reconcile.Classified[models.HarvestRecord]) error {
		c := rec.Candidate
		return models.UpsertHarvestRecord(ctx, &c, rec.ExistingID)
	}
	// One write per natural key; later rows for a key supersede earlier ones.
	err = reconcile.ApplyChunked(ctx, run, reconcile.CollapseWritable(outcome.Writable()),
		config.ImportChunkSize(), config.ImportConcurrency(), writer,
		func(p reconcile.Progress) { storeProgress(run.ID, p) })
	if err != nil {
		run.Fail("run canceled: " + err.Error())
		finishRun(ctx, run, models.ImportTypeHarvest)
		return run, nil
	}

	_ = run.To(reconcile.RunStateDone)
	finishRun(ctx, run, models.ImportTypeHarvest)
	return run, nil
}

func rowKey(row int) string {
	return "row " + strconv.Itoa(row)
}

// resolvedNameIds flattens a resolve result into a lowercase name -> master
// id map covering every resolved spelling.
func resolvedNameIds(res reconcile.ResolveResult) map[string]int {
	ids := make(map[string]int, len(res.Resolved))
	for _, r := range res.Resolved {
		ids[strings.ToLower(r.Name)] = r.MasterID
		for _, v := range r.Variants {
			ids[strings.ToLower(v)] = r.MasterID
		}
	}
	return ids
}

// createMissingMasters creates divisions first, then blocks, so every new
// block can point at its (possibly just-created) division. New masters are
// registered on the run's registry and name maps immediately.
func createMissingMasters(ctx context.Context, parsed []HarvestRow, unresolvedDivisions, unresolvedBlocks []reconcile.Resolution, registry *reconcile.Registry, divisionIds, blockIds map[string]int) error {
	for _, u := range unresolvedDivisions {
		division, err := models.CreateDivision(ctx, &models.NewDivision{Name: u.Name})
		if err != nil {
			return err
		}
		registry.RegisterCreated(reconcile.EntityTypeDivision, reconcile.Master{ID: division.ID, Name: division.Name})
		divisionIds[strings.ToLower(u.Name)] = division.ID
		for _, v := range u.Variants {
			divisionIds[strings.ToLower(v)] = division.ID
		}
	}

	// Each block belongs to the division it first appeared with in the sheet.
	blockDivision := make(map[string]string)
	for _, r := range parsed {
		key := strings.ToLower(r.BlockName)
		if _, ok := blockDivision[key]; !ok {
			blockDivision[key] = strings.ToLower(r.DivisionName)
		}
	}

	for _, u := range unresolvedBlocks {
		divisionId := 0
		for _, name := range append([]string{u.Name}, u.Variants...) {
			if divName, ok := blockDivision[strings.ToLower(name)]; ok {
				if id, ok := divisionIds[divName]; ok {
					divisionId = id
					break
				}
			}
		}
		if divisionId == 0 {
			continue
		}
		block, err := models.CreateBlock(ctx, &models.NewBlock{DivisionId: divisionId, Name: u.Name})
		if err != nil {
			return err
		}
		registry.RegisterCreated(reconcile.EntityTypeBlock, reconcile.Master{ID: block.ID, Name: block.Name})
		blockIds[strings.ToLower(u.Name)] = block.ID
		for _, v := range u.Variants {
			blockIds[strings.ToLower(v)] = block.ID
		}
	}
	return nil
}

// finishRun persists the terminal run state and emits the run event.
// Both are best effort once the writes themselves have settled.
func finishRun(ctx context.Context, run *reconcile.Run, importType string) {
	logger := config.GetLogger()

	if err := models.FinishImportRun(ctx, run.ID, run); err != nil {
		config.LogError(logger, "harvest.go", "finishRun", "persist run", run.ID, err)
	}

	businessId, _ := utils.GetBusinessIdFromContext(ctx)
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	if err := config.PublishImportEvent(ctx, config.ImportEventMessage{
		RunId:          run.ID,
		BusinessId:     businessId,
		ImportType:     importType,
		Status:         string(run.State),
		NewCount:       run.NewCount,
		UpdatedCount:   run.UpdatedCount,
		DuplicateCount: run.DuplicateCount,
		InvalidCount:   run.InvalidCount,
		FailedCount:    run.FailedCount,
		FinishedAt:     time.Now(),
		CorrelationId:  correlationId,
	}); err != nil {
		config.LogError(logger, "harvest.go", "finishRun", "publish run event", run.ID, err)
	}
}
