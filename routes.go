package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"etd-catalog/config"
	"etd-catalog/etderr"
	"etd-catalog/models"
	"etd-catalog/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// catalog bündelt die Services, die der HTTP-Layer aufruft.
type catalog struct {
	Entries   *services.EtdEntryService
	Comments  *services.ClaimCommentService
	Favorites *services.FavoriteService
	Users     *services.UserService
}

const userKey = "user"

// identityMiddleware übernimmt die vom Auth-Proxy verifizierte Identität und legt den User bei Bedarf an.
func identityMiddleware(cfg *config.Config, users *services.UserService, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		externalID := c.GetHeader(cfg.IdentityHeader)
		if externalID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: missing identity"})
			return
		}
		user, err := users.EnsureUser(c.Request.Context(), externalID, c.GetHeader(cfg.IdentityNameHeader))
		if err != nil {
			log.Error("Identity could not be resolved", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: invalid identity"})
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.User {
	return c.MustGet(userKey).(*models.User)
}

// respondError bildet die Fehlerarten auf HTTP-Status ab. Interne Ursachen gehen nur ins Log.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	var f *etderr.Failure
	if !errors.As(err, &f) {
		log.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	switch {
	case f.Kind == etderr.ValidationFailed || f.Kind == etderr.InvalidPath:
		c.JSON(http.StatusNotAcceptable, gin.H{"error": f.Msg, "kind": f.Kind})
	case etderr.IsNotFound(f):
		c.JSON(http.StatusNotFound, gin.H{"error": f.Msg, "kind": f.Kind})
	case etderr.IsReactionConflict(f):
		c.JSON(http.StatusConflict, gin.H{"error": f.Msg, "kind": f.Kind})
	case f.Kind == etderr.CreationFailed:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create record", "kind": f.Kind})
	case f.Kind == etderr.DeletionFailed:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete record", "kind": f.Kind})
	default:
		log.Error("Unmapped failure", zap.String("kind", string(f.Kind)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

// newRouter baut die Routen des Katalogs. Alles unter /private braucht eine Identität.
func newRouter(cfg *config.Config, cat *catalog, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = cfg.MaxUploadMB << 20
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := router.Group("/public")
	setupPublicEtdRoutes(public, cat, log)

	private := router.Group("/private")
	private.Use(identityMiddleware(cfg, cat.Users, log))
	setupPrivateEtdRoutes(private, cfg, cat, log)
	setupCommentRoutes(private, cat, log)
	setupFavoriteRoutes(private, cat, log)
	setupUserRoutes(private, cat, log)
	return router
}

func setupPublicEtdRoutes(rg *gin.RouterGroup, cat *catalog, log *zap.Logger) {
	// Eintrag mit Metadaten
	rg.GET("/etd/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		entry, err := cat.Entries.GetEntry(c.Request.Context(), id)
		if err != nil {
			respondError(c, log, err)
			return
		}
		meta, err := cat.Entries.GetMeta(c.Request.Context(), id)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entry": entry, "meta": meta})
	})

	rg.GET("/etd/:id/download", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		rc, filename, err := cat.Entries.OpenDocument(c.Request.Context(), id)
		if err != nil {
			respondError(c, log, err)
			return
		}
		defer rc.Close()

		c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(filename))
		c.Header("Content-Type", services.PDFContentType)
		c.Status(http.StatusOK)
		if _, err := io.Copy(c.Writer, rc); err != nil {
			log.Warn("Download abgebrochen", zap.Uint("entry_id", id), zap.Error(err))
		}
	})

	rg.GET("/etd/:id/comments", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		comments, err := cat.Comments.EntryComments(c.Request.Context(), id)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"comments": comments, "likes": services.LikesFor(comments)})
	})
}

func setupPrivateEtdRoutes(rg *gin.RouterGroup, cfg *config.Config, cat *catalog, log *zap.Logger) {
	// Multipart: Feld "metadata" (JSON) und Datei "etdDocument"
	rg.POST("/etd/create", func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, (cfg.MaxUploadMB<<20)+(1<<20))

		var meta models.EtdEntryMeta
		if err := json.Unmarshal([]byte(c.PostForm("metadata")), &meta); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid metadata"})
			return
		}
		header, err := c.FormFile("etdDocument")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "etdDocument is required"})
			return
		}
		file, err := header.Open()
		if err != nil {
			respondError(c, log, err)
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			respondError(c, log, err)
			return
		}

		entry, err := cat.Entries.Create(c.Request.Context(), &meta, services.DocumentUpload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		}, currentUser(c).ID)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, entry)
	})

	// Nur der Besitzer darf löschen
	rg.DELETE("/etd/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		entry, err := cat.Entries.GetEntry(c.Request.Context(), id)
		if err != nil {
			respondError(c, log, err)
			return
		}
		if entry.UserID == nil || *entry.UserID != currentUser(c).ID {
			c.JSON(http.StatusForbidden, gin.H{"error": "only the owner may delete this record"})
			return
		}
		if err := cat.Entries.Delete(c.Request.Context(), id); err != nil {
			respondError(c, log, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	rg.POST("/etd/:id/comment/add", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var comment models.ClaimComment
		if err := c.ShouldBindJSON(&comment); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		created, err := cat.Comments.AddComment(c.Request.Context(), id, &comment, currentUser(c).ID)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	})
}

func setupCommentRoutes(rg *gin.RouterGroup, cat *catalog, log *zap.Logger) {
	for _, action := range []services.ReactionAction{
		services.ActionLike, services.ActionDislike, services.ActionUnlike, services.ActionUndislike,
	} {
		rg.POST("/comments/:id/"+string(action), func(c *gin.Context) {
			id, ok := idParam(c)
			if !ok {
				return
			}
			comment, err := cat.Comments.React(c.Request.Context(), currentUser(c).ID, id, action)
			if err != nil {
				respondError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"id": comment.ID, "likes": comment.Likes})
		})
	}

	rg.POST("/comments/status", func(c *gin.Context) {
		var req struct {
			CommentIDs []uint `json:"comment_ids" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "comment_ids is required"})
			return
		}
		comments, err := cat.Comments.GetComments(c.Request.Context(), req.CommentIDs)
		if err != nil {
			respondError(c, log, err)
			return
		}
		status, err := cat.Comments.ReactionStatus(c.Request.Context(), currentUser(c).ID, comments)
		if err != nil {
			respondError(c, log, err)
			return
		}
		ids := make([]uint, len(comments))
		for i, cm := range comments {
			ids[i] = cm.ID
		}
		c.JSON(http.StatusOK, gin.H{"comment_ids": ids, "status": status, "likes": services.LikesFor(comments)})
	})
}

func setupFavoriteRoutes(rg *gin.RouterGroup, cat *catalog, log *zap.Logger) {
	fav := rg.Group("/favorites")

	fav.GET("", func(c *gin.Context) {
		entries, err := cat.Favorites.List(c.Request.Context(), currentUser(c).ID)
		if err != nil {
			respondError(c, log, err)
			return
		}
		metas, err := cat.Entries.MetasForEntries(c.Request.Context(), entries)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries, "metas": metas})
	})

	fav.POST("/check", func(c *gin.Context) {
		var req struct {
			EtdIDs []uint `json:"etd_ids" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "etd_ids is required"})
			return
		}
		favorite, err := cat.Favorites.Check(c.Request.Context(), currentUser(c).ID, req.EtdIDs)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"etd_ids": req.EtdIDs, "favorite": favorite})
	})

	fav.POST("/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		if err := cat.Favorites.Add(c.Request.Context(), currentUser(c).ID, id); err != nil {
			respondError(c, log, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	fav.DELETE("/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		if err := cat.Favorites.Remove(c.Request.Context(), currentUser(c).ID, id); err != nil {
			respondError(c, log, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func setupUserRoutes(rg *gin.RouterGroup, cat *catalog, log *zap.Logger) {
	rg.GET("/user", func(c *gin.Context) {
		user := currentUser(c)
		entries, err := cat.Entries.EntriesOfUser(c.Request.Context(), user.ID)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user, "entries": entries})
	})

	rg.PUT("/user", func(c *gin.Context) {
		var req struct {
			FullName string `json:"full_name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "full_name is required"})
			return
		}
		if err := cat.Users.UpdateName(c.Request.Context(), currentUser(c).ID, req.FullName); err != nil {
			respondError(c, log, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	rg.DELETE("/user", func(c *gin.Context) {
		if err := cat.Users.Delete(c.Request.Context(), currentUser(c).ID); err != nil {
			respondError(c, log, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}
