package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"affimporter/internal/api/middleware"
	"affimporter/internal/logger"
	"affimporter/internal/sanitize"
	"affimporter/internal/services/products"
	"affimporter/internal/services/settings"

	"github.com/gin-gonic/gin"
)

type ProductHandler struct {
	lister   *products.Lister
	importer *products.Importer
	settings *settings.Service
	logger   *logger.Logger
	now      func() time.Time
}

func NewProductHandler(lister *products.Lister, importer *products.Importer, settings *settings.Service, logger *logger.Logger) *ProductHandler {
	return &ProductHandler{
		lister:   lister,
		importer: importer,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

type importResponse struct {
	ProductIDs   []uint   `json:"product_ids"`
	ProductASINs []string `json:"product_asins"`
}

func (h *ProductHandler) List(c *gin.Context) {
	page := sanitize.Int(c.Query("page"))
	perPage := sanitize.Int(c.Query("per_page"))

	res, err := h.lister.List(c.Request.Context(), page, perPage, h.now())
	if err != nil {
		h.logger.Error("Failed to list products: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *ProductHandler) Import(c *gin.Context) {
	var req products.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	h.importCandidates(c, req.Products, req.Categories)
}

// ImportFile imports the rows of an uploaded CSV or XLSX file.
func (h *ProductHandler) ImportFile(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please upload a CSV or Excel file"})
		return
	}

	file, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	defer file.Close()

	candidates, err := products.ParseImportFile(fh.Filename, file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.importCandidates(c, candidates, products.ParseCategories(c.PostForm("categories")))
}

func (h *ProductHandler) importCandidates(c *gin.Context, candidates []products.Candidate, categories []int) {
	ctx := c.Request.Context()

	remoteImage, err := h.settings.RemoteImage(ctx)
	if err != nil {
		h.logger.Error("Failed to read remote image setting: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to import products"})
		return
	}

	var authorID uint
	if user := middleware.CurrentUser(c); user != nil {
		authorID = user.ID
	}

	res, err := h.importer.ImportBatch(ctx, candidates, products.ImportOptions{
		Categories:  categories,
		AuthorID:    authorID,
		Now:         h.now(),
		RemoteImage: remoteImage,
		BatchID:     middleware.RequestIDFrom(c),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Warn("Import batch ended early: %v", err)
	}

	c.JSON(http.StatusOK, importResponse{
		ProductIDs:   res.ProductIDs(),
		ProductASINs: res.ProductASINs(),
	})
}
