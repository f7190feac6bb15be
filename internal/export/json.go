// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"

	"github.com/jeranaias/glmchat/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports conversations to JSON format.
// NOTE: JSON exports always include the complete conversation, attached
// image bytes included, so the file can be re-imported.
type JSONExporter struct{}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter() *JSONExporter {
	return &JSONExporter{}
}

// Export converts a conversation to JSON format.
func (e *JSONExporter) Export(conv model.Conversation) ([]byte, error) {
	return json.MarshalIndent(conv, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}
