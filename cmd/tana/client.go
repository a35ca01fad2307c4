package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperjump/tana/internal/models"
)

var httpClient = &http.Client{Timeout: 2 * time.Minute}

func workspaceURL(serverURL, workspace, action string) string {
	return strings.TrimRight(serverURL, "/") + "/api/v1/workspaces/" + url.PathEscape(workspace) + "/" + action
}

func addViaHTTP(serverURL, workspace string, req *models.AddDocumentsRequest) (*models.AddDocumentsResponse, error) {
	var resp models.AddDocumentsResponse
	if err := doJSON(http.MethodPost, workspaceURL(serverURL, workspace, "documents"), req, http.StatusCreated, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func searchViaHTTP(serverURL, workspace string, query *models.SearchQuery) (*models.SearchResponse, error) {
	var resp models.SearchResponse
	if err := doJSON(http.MethodPost, workspaceURL(serverURL, workspace, "search"), query, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func statsViaHTTP(serverURL, workspace string) (*models.WorkspaceStats, error) {
	var resp models.WorkspaceStats
	if err := doJSON(http.MethodGet, workspaceURL(serverURL, workspace, "stats"), nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func doJSON(method, target string, body any, wantStatus int, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, target, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
