package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"finBriefAPI/internal/types/news"
	"finBriefAPI/middleware"
	"finBriefAPI/services"
)

type NewsHandler struct {
	userService *services.UserService
	newsService *services.NewsService
}

func NewNewsHandler(userService *services.UserService, newsService *services.NewsService) *NewsHandler {
	return &NewsHandler{
		userService: userService,
		newsService: newsService,
	}
}

// gate resolves the authenticated user and checks entitlement before any
// feed work happens. On failure it writes the response and returns ok=false:
// the whole request is rejected, nothing is partially served.
func (h *NewsHandler) gate(ctx context.Context, w http.ResponseWriter) bool {
	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return false
	}

	u, err := h.userService.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "User not found")
		return false
	}

	if !h.userService.IsEntitled(ctx, u.ID) {
		respondWithError(w, http.StatusForbidden, "Active subscription required to access news")
		return false
	}
	return true
}

// GetNews lists the latest articles for entitled subscribers.
func (h *NewsHandler) GetNews(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if !h.gate(ctx, w) {
		return
	}

	articles, err := h.newsService.FetchNews(ctx)
	if err != nil {
		respondWithError(w, http.StatusBadGateway, "Failed to fetch news feed")
		return
	}

	respondWithJSON(w, http.StatusOK, articles)
}

// GetArticleSummary returns the AI summary of one article by feed index.
func (h *NewsHandler) GetArticleSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	if !h.gate(ctx, w) {
		return
	}

	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid article index")
		return
	}

	summary, err := h.newsService.SummarizeArticle(ctx, index)
	if err != nil {
		if errors.Is(err, services.ErrArticleNotFound) {
			respondWithError(w, http.StatusNotFound, "Article not found")
			return
		}
		respondWithError(w, http.StatusBadGateway, "Failed to summarize article")
		return
	}

	respondWithJSON(w, http.StatusOK, news.SummaryResponse{Summary: summary})
}
