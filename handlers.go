package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"image"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gigmeter/models"
	"gigmeter/pkg/analysis"
	"gigmeter/pkg/vision"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func setupRoutes(r *gin.Engine) {
	r.POST("/register", registerHandler)
	r.POST("/login", loginHandler)
	r.POST("/refresh", refreshHandler)
	r.POST("/revoke_refresh", revokeRefreshHandler)
	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware())
	authGroup.GET("/me", meHandler)
	authGroup.POST("/analyze", analyzeHandler)
	authGroup.POST("/frames", uploadFrameHandler)
	authGroup.GET("/frames", listFramesHandler)
	authGroup.GET("/frames/:id", getFrameHandler)
	authGroup.GET("/offers", listOffersHandler)
	authGroup.GET("/offers/summary", offerSummaryHandler)
	authGroup.GET("/status", statusHandler)
}

func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		tokenString := authHeader[7:]
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrInvalidKeyType
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			c.Abort()
			return
		}
		username, _ := claims["username"].(string)
		role, _ := claims["role"].(string)
		c.Set("username", username)
		if role != "" {
			c.Set("role", role)
		}
		c.Next()
	}
}

func meHandler(c *gin.Context) {
	usernameVal, _ := c.Get("username")
	if usernameVal == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "context missing username"})
		return
	}
	username := usernameVal.(string)
	c.JSON(http.StatusOK, gin.H{"username": username})
}

// getUserFromContext fetches the currently authenticated user using the username set by jwtAuthMiddleware
func getUserFromContext(c *gin.Context) (*models.User, bool) {
	unameVal, _ := c.Get("username")
	if unameVal == nil {
		return nil, false
	}
	uname := unameVal.(string)
	var user models.User
	if err := db.Where("username = ?", uname).First(&user).Error; err != nil {
		return nil, false
	}
	return &user, true
}

// analyzeHandler runs the extraction core on recognized lines supplied by an
// external capture/recognition client. Nothing is persisted; this is the
// pure collaborator boundary (and the endpoint used to validate pattern
// tuning against real captures).
func analyzeHandler(c *gin.Context) {
	var req struct {
		FrameWidth  int `json:"frame_width" binding:"required"`
		FrameHeight int `json:"frame_height" binding:"required"`
		Lines       []struct {
			Text       string  `json:"text"`
			Left       int     `json:"left"`
			Top        int     `json:"top"`
			Right      int     `json:"right"`
			Bottom     int     `json:"bottom"`
			Confidence float64 `json:"confidence"`
		} `json:"lines"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	lines := make([]analysis.DetectedText, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, analysis.DetectedText{
			Text:       l.Text,
			Box:        image.Rect(l.Left, l.Top, l.Right, l.Bottom),
			Confidence: l.Confidence,
		})
	}
	res := engine.Analyze(lines, req.FrameWidth, req.FrameHeight)
	c.JSON(http.StatusOK, gin.H{"result": res, "display": analysis.FormatResult(res)})
}

// uploadFrameHandler accepts a captured screenshot, OCRs it, runs the
// analysis core, persists the capture and extracted offers, and updates the
// overlay status.
func uploadFrameHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	if file.Size > 5*1024*1024 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large (max 5MB)"})
		return
	}

	// idempotent per user+filename: re-uploads return the stored analysis
	var existing models.FrameCapture
	if err := db.Preload("Offers").Where("user_id = ? AND file_name = ?", user.ID, file.Filename).First(&existing).Error; err == nil {
		c.JSON(http.StatusOK, gin.H{"id": existing.ID, "frame": existing, "duplicate": true})
		return
	}

	userDir := filepath.Join(frameBaseDir(), user.Username)
	if err := os.MkdirAll(userDir, 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "mkdir failed"})
		return
	}
	fullPath := filepath.Join(userDir, filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, fullPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}

	// sequence reserved before OCR: display updates keep capture order even
	// if a later frame finishes first
	seq := latest.nextFrameSeq()

	frame := models.FrameCapture{
		UserID:      user.ID,
		FileName:    file.Filename,
		StorePath:   fullPath,
		ContentType: file.Header.Get("Content-Type"),
	}
	lines, w, h, ocrErr := vision.ReadFrame(fullPath)
	if ocrErr != nil {
		frame.Failed = true
		frame.FailedReason = ocrErr.Error()
		if err := db.Create(&frame).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db save failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": frame.ID, "failed": true, "reason": frame.FailedReason})
		return
	}

	res := engine.Analyze(lines, w, h)
	frame.Width = w
	frame.Height = h
	frame.LineCount = len(lines)
	frame.DoublePing = res.DoublePing
	if err := db.Create(&frame).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db save failed"})
		return
	}
	for _, fr := range []*analysis.FareResult{res.Rapido, res.Uber} {
		if fr == nil {
			continue
		}
		rec := offerRecordFrom(fr, user.ID, frame.ID)
		if err := db.Create(&rec).Error; err != nil && !isUniqueConstraintError(err) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db save failed"})
			return
		}
	}

	latest.publish(seq, analysis.FormatResult(res), res.DoublePing)
	c.JSON(http.StatusOK, gin.H{
		"id":      frame.ID,
		"result":  res,
		"display": analysis.FormatResult(res),
	})
}

func offerRecordFrom(fr *analysis.FareResult, userID, frameID uint) models.OfferRecord {
	fid := frameID
	return models.OfferRecord{
		UserID:      userID,
		FrameID:     &fid,
		Platform:    fr.Platform.String(),
		BaseFare:    fr.BaseFare,
		Bonus:       fr.Bonus,
		PickupKm:    fr.PickupKm,
		DropKm:      fr.DropKm,
		ProfitPerKm: fr.ProfitPerKm(),
		Profitable:  fr.Profitable(),
		Blocked:     fr.Blocked,
		Confidence:  fr.Confidence,
		SeenAt:      time.Now(),
	}
}

// listFramesHandler lists recent captures for the authenticated user (admin sees all)
func listFramesHandler(c *gin.Context) {
	role, _ := c.Get("role")
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var frames []models.FrameCapture
	q := db.Model(&models.FrameCapture{})
	if role != "administrator" {
		q = q.Where("user_id = ?", user.ID)
	}
	if err := q.Order("id desc").Limit(100).Find(&frames).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, frames)
}

// getFrameHandler returns single capture with its offers if admin or owner.
func getFrameHandler(c *gin.Context) {
	role, _ := c.Get("role")
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	id := c.Param("id")
	var frame models.FrameCapture
	if err := db.Preload("Offers").First(&frame, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if role != "administrator" && frame.UserID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.JSON(http.StatusOK, frame)
}

// listOffersHandler lists recent extracted offers for the authenticated user (admin sees all)
func listOffersHandler(c *gin.Context) {
	role, _ := c.Get("role")
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var items []models.OfferRecord
	q := db.Model(&models.OfferRecord{})
	if role != "administrator" {
		q = q.Where("user_id = ?", user.ID)
	}
	if err := q.Order("id desc").Limit(200).Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, items)
}

// offerSummaryHandler returns per-day offer counts and profitability
func offerSummaryHandler(c *gin.Context) {
	role, _ := c.Get("role")
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	type Result struct {
		Day         string
		Offers      int64
		Profitable  int64
		AvgProfitKm float64
	}
	var results []Result
	q := db.Model(&models.OfferRecord{})
	if role != "administrator" {
		q = q.Where("user_id = ?", user.ID)
	}
	// Use to_char for Postgres to group by day
	rows, err := q.Select("to_char(seen_at, 'YYYY-MM-DD') as day, count(*) as offers, sum(case when profitable then 1 else 0 end) as profitable, avg(profit_per_km) as avg_profit_km").Group("day").Order("day desc").Rows()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	defer rows.Close()
	for rows.Next() {
		var r Result
		rows.Scan(&r.Day, &r.Offers, &r.Profitable, &r.AvgProfitKm)
		results = append(results, r)
	}
	c.JSON(http.StatusOK, results)
}

// statusHandler returns the latest formatted display string for the overlay
// client; the client handles rendering, colours and auto-hide.
func statusHandler(c *gin.Context) {
	text, doublePing, updatedAt, ok := latest.snapshot()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"display": analysis.FormatResult(analysis.AnalysisResult{}), "double_ping": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"display": text, "double_ping": doublePing, "updated_at": updatedAt})
}

func registerHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := RegisterUser(req.Username, req.Password); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user registered successfully"})
}

func loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	// Generate JWT token. Resolve role name from RoleID (we only store role_id).
	roleName := ""
	if user.RoleID != nil {
		var r models.Role
		if err := db.First(&r, *user.RoleID).Error; err == nil {
			roleName = r.Name
		}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"role":     roleName,
		"exp":      time.Now().Add(time.Hour * 24).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	refreshToken, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": tokenString, "refresh_token": refreshToken})
}

// createAndStoreRefreshToken generates a random refresh token, stores its hash with expiry and returns the raw token string
func createAndStoreRefreshToken(userID uint) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)
	// hash for storage
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	rt := models.RefreshToken{UserID: userID, TokenHash: th, ExpiresAt: time.Now().Add(30 * 24 * time.Hour)}
	if err := db.Create(&rt).Error; err != nil {
		return "", err
	}
	return token, nil
}

// helper to find refresh token record by raw token string
func findRefreshTokenByRaw(token string) (*models.RefreshToken, error) {
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	var rt models.RefreshToken
	if err := db.Where("token_hash = ?", th).First(&rt).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

// refreshHandler exchanges a refresh token for a new access token and rotates the refresh token
func refreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil || rt.Revoked || time.Now().After(rt.ExpiresAt) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
		return
	}
	var user models.User
	if err := db.First(&user, rt.UserID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	roleName := ""
	if user.RoleID != nil {
		var r models.Role
		if err := db.First(&r, *user.RoleID).Error; err == nil {
			roleName = r.Name
		}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"role":     roleName,
		"exp":      time.Now().Add(15 * time.Minute).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	// rotate refresh token: revoke existing and create new one
	db.Model(&models.RefreshToken{}).Where("id = ?", rt.ID).Update("revoked", true)
	newRT, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rotate refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tokenString, "refresh_token": newRT})
}

// revokeRefreshHandler revokes a given refresh token (useful on logout)
func revokeRefreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "refresh token not found"})
		return
	}
	rt.Revoked = true
	if err := db.Save(rt).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "refresh token revoked"})
}
