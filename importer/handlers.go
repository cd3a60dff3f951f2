package importer

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"bitbucket.org/agrifocus/plantation_backend/models"
	"bitbucket.org/agrifocus/plantation_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

type resolveRequest struct {
	Names []string `json:"names" binding:"required"`
}

type confirmRequest struct {
	Mappings []models.AliasMapping `json:"mappings" binding:"required"`
}

// readSheetUpload reads the uploaded xlsx, archives a copy, and returns
// the rows of the first sheet plus the archive URL.
func readSheetUpload(c *gin.Context, prefix string) ([][]string, string, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, "", err
	}
	if !strings.HasSuffix(fileHeader.Filename, ".xlsx") {
		return nil, "", errInvalidFileType
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	businessId, _ := utils.GetBusinessIdFromContext(c.Request.Context())
	objectName := prefix + "/" + businessId + "_" + utils.GenerateUniqueFilename() + ".xlsx"

	sourceFileUrl := ""
	if os.Getenv("GCS_BUCKET") != "" {
		if err := utils.UploadFileToGCS(c.Request.Context(), objectName, file); err != nil {
			return nil, "", err
		}
		sourceFileUrl = "gs://" + os.Getenv("GCS_BUCKET") + "/" + objectName
		if _, err := file.Seek(0, 0); err != nil {
			return nil, "", err
		}
	}

	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, "", errEmptyWorkbook
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, "", err
	}
	return rows, sourceFileUrl, nil
}

// ImportHarvestHandler accepts a harvest xlsx and runs the import
// synchronously, returning the final run report.
func ImportHarvestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, sourceFileUrl, err := readSheetUpload(c, "importHarvest")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		run, err := RunHarvestImport(c.Request.Context(), rows, sourceFileUrl)
		if err != nil {
			status := http.StatusInternalServerError
			if err == utils.ErrorImportInProgress {
				status = http.StatusConflict
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

// ImportTransportHandler accepts a transport xlsx and runs the import.
func ImportTransportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, sourceFileUrl, err := readSheetUpload(c, "importTransport")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		run, err := RunTransportImport(c.Request.Context(), rows, sourceFileUrl)
		if err != nil {
			status := http.StatusInternalServerError
			if err == utils.ErrorImportInProgress {
				status = http.StatusConflict
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

// ResolveTransportHandler previews company name resolution for a batch of
// raw names without writing anything.
func ResolveTransportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resolveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		result, err := ResolveTransportCompanies(c.Request.Context(), req.Names)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// ConfirmTransportHandler saves confirmed alias mappings. Partial success
// is reported per mapping.
func ConfirmTransportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req confirmRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		result, err := ConfirmCompanyAliases(c.Request.Context(), req.Mappings)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// GetRunHandler returns one persisted run header.
func GetRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		runId := c.Param("id")
		run, err := models.GetImportRun(c.Request.Context(), runId)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

// ListRunsHandler lists recent runs for the business.
func ListRunsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		runs, err := models.ListImportRuns(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, runs)
	}
}

// RunProgressHandler reports the latest chunk progress of a run.
func RunProgressHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		runId := c.Param("id")
		progress, err := GetProgress(runId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if progress == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no progress reported for run"})
			return
		}
		c.JSON(http.StatusOK, progress)
	}
}

var (
	errInvalidFileType = errors.New("invalid file type: only .xlsx files are allowed")
	errEmptyWorkbook   = errors.New("workbook has no sheets")
)
