/*
Copyright 2025 QuickApiMapper Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package files

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JerrettDavis/QuickApiMapper-sub001/model"
)

// StoreFunc defines the function signature for storing imported mappings.
type StoreFunc func(ctx context.Context, importID string, mapping model.IntegrationMapping) error

// ImportMappings handles the process of importing mapping definitions by
// detecting file type, parsing, and storing them. JSON files carry an array
// of full integration mappings; CSV files carry flat field-mapping rows that
// are grouped into mappings by name.
//
// Returns:
// - string: The ID of the import.
// - int: The total number of mappings imported.
// - error: If any step of the process fails.
func ImportMappings(ctx context.Context, reader io.Reader, filename string, store StoreFunc) (string, int, error) {
	importID := model.GenerateUUIDWithSuffix("import") // Generate a unique ID for the import.

	// Create a temporary file and populate it with the uploaded data.
	tempFile, err := createAndPopulateTempFile(filename, reader)
	if err != nil {
		return "", 0, err
	}
	defer cleanupTempFile(tempFile) // Ensure the temp file is cleaned up after processing.

	// Detect the file type (CSV or JSON) based on the content.
	fileType, err := detectFileTypeFromTempFile(tempFile, filename)
	if err != nil {
		return "", 0, err
	}

	// Parse and store the mappings based on the file type.
	total, err := parseAndStoreMappings(ctx, importID, tempFile, fileType, store)
	if err != nil {
		return "", 0, err
	}

	return importID, total, nil
}

// createAndPopulateTempFile creates a temporary file and writes the uploaded data to it.
func createAndPopulateTempFile(filename string, reader io.Reader) (*os.File, error) {
	// Create a new temporary file with a name based on the original filename.
	tempFile, err := createTempFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error creating temporary file: %w", err)
	}

	// Copy the uploaded data into the temporary file.
	if _, err := io.Copy(tempFile, reader); err != nil {
		return nil, fmt.Errorf("error copying upload data: %w", err)
	}

	// Reset the file pointer to the beginning for subsequent reading.
	if _, err := tempFile.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("error seeking temporary file: %w", err)
	}

	return tempFile, nil
}

// detectFileTypeFromTempFile detects the file type by reading the first 512 bytes from the temporary file.
func detectFileTypeFromTempFile(tempFile *os.File, filename string) (string, error) {
	header := make([]byte, 512)
	// Read the first 512 bytes of the file (enough for MIME type detection).
	if _, err := tempFile.Read(header); err != nil && err != io.EOF {
		return "", fmt.Errorf("error reading file header: %w", err)
	}

	// Detect the file type based on the content.
	fileType, err := DetectFileType(header, filename)
	if err != nil {
		return "", fmt.Errorf("error detecting file type: %w", err)
	}

	// Reset the file pointer to the beginning for subsequent reading.
	if _, err := tempFile.Seek(0, 0); err != nil {
		return "", fmt.Errorf("error seeking temporary file: %w", err)
	}

	return fileType, nil
}

// parseAndStoreMappings parses and stores mappings based on the file type (either CSV or JSON).
func parseAndStoreMappings(ctx context.Context, importID string, reader io.Reader, fileType string, store StoreFunc) (int, error) {
	switch fileType {
	case "text/csv", "text/csv; charset=utf-8":
		// Handle CSV files.
		return ProcessCSV(ctx, importID, reader, store)
	case "application/json":
		// Handle JSON files.
		return ProcessJSON(ctx, importID, reader, store)
	default:
		// Return an error if the file type is unsupported.
		return 0, fmt.Errorf("unsupported file type: %s", fileType)
	}
}

// createTempFile creates a new temporary file for storing the uploaded data.
func createTempFile(originalFilename string) (*os.File, error) {
	// Create the directory for temporary files if it doesn't exist.
	tempDir := filepath.Join(os.TempDir(), "qam_uploads")
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating temporary directory: %w", err)
	}

	// Create a temporary file with a prefix based on the original filename.
	prefix := fmt.Sprintf("%s_", filepath.Base(originalFilename))
	tempFile, err := os.CreateTemp(tempDir, prefix)
	if err != nil {
		return nil, fmt.Errorf("error creating temporary file: %w", err)
	}

	return tempFile, nil
}

// cleanupTempFile removes the specified temporary file from the filesystem.
func cleanupTempFile(file *os.File) {
	if file != nil {
		filename := file.Name() // Get the file name.
		file.Close()            // Close the file before removing it.
		if err := os.Remove(filename); err != nil {
			// Log any errors encountered during file removal.
			log.Printf("Error removing temporary file %s: %v", filename, err)
		}
	}
}

// DetectFileType attempts to detect the file type based on its extension or content.
// If the file extension can identify the type, it returns that, otherwise, it inspects the content of the file.
func DetectFileType(data []byte, filename string) (string, error) {
	// Attempt to detect file type by its extension first.
	if mimeType := DetectByExtension(filename); mimeType != "" {
		return mimeType, nil
	}
	// If detection by extension fails, analyze the content.
	return DetectByContent(data)
}

// DetectByExtension detects the MIME type by the file extension.
func DetectByExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename)) // Extract and lower the file extension.
	return mime.TypeByExtension(ext)               // Use the standard library to get MIME type.
}

// DetectByContent detects the MIME type based on the content of the file.
func DetectByContent(data []byte) (string, error) {
	mimeType := http.DetectContentType(data) // Detect content type by analyzing the first 512 bytes.

	switch mimeType {
	case "application/octet-stream", "text/plain":
		// If detected as binary or plain text, analyze the content further.
		return AnalyzeTextContent(data)
	case "text/csv; charset=utf-8":
		// Directly return if CSV is detected.
		return "text/csv", nil
	default:
		return mimeType, nil // Return detected MIME type.
	}
}

// AnalyzeTextContent further inspects text-based content to differentiate between CSV, JSON, or plain text.
func AnalyzeTextContent(data []byte) (string, error) {
	// Trailing zero bytes from a partially filled detection buffer would
	// defeat json.Valid, so trim them first.
	data = bytes.TrimRight(data, "\x00")
	if LooksLikeCSV(data) {
		return "text/csv", nil
	}
	if json.Valid(data) {
		return "application/json", nil
	}
	return "text/plain", nil // Default to plain text if no other format matches.
}

// LooksLikeCSV checks whether the provided data looks like a CSV file.
func LooksLikeCSV(data []byte) bool {
	lines := bytes.Split(data, []byte("\n")) // Split the content into lines.
	if len(lines) < 2 {
		return false // Require at least two lines for CSV.
	}

	// Count the number of fields (columns) in the first line.
	fields := bytes.Count(lines[0], []byte(",")) + 1
	// Ensure all subsequent lines have the same number of fields.
	for _, line := range lines[1:] {
		if len(line) == 0 {
			continue // Skip empty lines.
		}
		if bytes.Count(line, []byte(","))+1 != fields {
			return false // Return false if field count doesn't match.
		}
	}

	return fields > 1 // Return true if there are at least two fields.
}

// ProcessCSV reads flat field-mapping rows from a CSV file and groups them
// into integration mappings by mapping name. Expected columns: name,
// endpoint, source_type, destination_type, source, destination, transformers.
// The transformers column is a semicolon-separated list and may be empty.
func ProcessCSV(ctx context.Context, importID string, reader io.Reader, store StoreFunc) (int, error) {
	csvReader := csv.NewReader(bufio.NewReader(reader))

	// Read the header row to determine column mapping.
	headers, err := csvReader.Read()
	if err != nil {
		return 0, fmt.Errorf("error reading CSV headers: %w", err)
	}

	// Create a column map to associate column names with their indices.
	columnMap, err := createColumnMap(headers)
	if err != nil {
		return 0, err
	}

	// Group the rows into mappings, preserving first-seen order.
	mappings, err := collectCSVMappings(ctx, csvReader, columnMap)
	if err != nil {
		return 0, err
	}

	for i := range mappings {
		if err := store(ctx, importID, mappings[i]); err != nil {
			return 0, fmt.Errorf("error storing mapping %q: %w", mappings[i].Name, err)
		}
	}

	return len(mappings), nil
}

// collectCSVMappings reads every row and accumulates field mappings under
// their mapping name.
func collectCSVMappings(ctx context.Context, csvReader *csv.Reader, columnMap map[string]int) ([]model.IntegrationMapping, error) {
	var errs []error
	var order []string
	byName := make(map[string]*model.IntegrationMapping)
	rowNum := 1 // Row number starts at 1 to account for the header row.

	for {
		record, err := csvReader.Read() // Read the next row.
		if err == io.EOF {
			break // Stop processing if end of file is reached.
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("error reading row %d: %w", rowNum, err))
			continue // Continue processing other rows even if this row fails.
		}

		rowNum++ // Increment row number.

		name, err := getRequiredField(record, columnMap, "name")
		if err != nil {
			errs = append(errs, fmt.Errorf("error parsing row %d: %w", rowNum, err))
			continue
		}

		mapping, ok := byName[name]
		if !ok {
			mapping = &model.IntegrationMapping{
				MappingID:       model.GenerateUUIDWithSuffix("mapping"),
				Name:            name,
				Endpoint:        getOptionalField(record, columnMap, "endpoint"),
				SourceType:      model.PayloadType(getOptionalField(record, columnMap, "source_type")),
				DestinationType: model.PayloadType(getOptionalField(record, columnMap, "destination_type")),
				CreatedAt:       time.Now(),
			}
			byName[name] = mapping
			order = append(order, name)
		}

		fieldMapping, err := parseFieldMapping(record, columnMap)
		if err != nil {
			errs = append(errs, fmt.Errorf("error parsing row %d: %w", rowNum, err))
			continue
		}
		mapping.FieldMappings = append(mapping.FieldMappings, fieldMapping)

		// Check for context cancellation every 1000 rows.
		if rowNum%1000 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err() // Return if the context is cancelled.
			default:
			}
		}
	}

	if len(errs) > 0 {
		// If there were errors, return a summary of them.
		return nil, fmt.Errorf("encountered %d errors while processing CSV: %v", len(errs), errs)
	}

	mappings := make([]model.IntegrationMapping, 0, len(order))
	for _, name := range order {
		mappings = append(mappings, *byName[name])
	}
	return mappings, nil
}

// createColumnMap creates a map of column names to their indices based on the headers row of a CSV file.
func createColumnMap(headers []string) (map[string]int, error) {
	requiredColumns := []string{"name", "source", "destination"} // Columns that must be present in the CSV.
	columnMap := make(map[string]int)

	// Map each column name to its index.
	for i, header := range headers {
		columnMap[strings.ToLower(strings.TrimSpace(header))] = i
	}

	// Ensure all required columns are present.
	for _, col := range requiredColumns {
		if _, exists := columnMap[col]; !exists {
			return nil, fmt.Errorf("required column '%s' not found in CSV", col)
		}
	}

	return columnMap, nil
}

// parseFieldMapping parses a row of the CSV file into a FieldMapping.
func parseFieldMapping(record []string, columnMap map[string]int) (model.FieldMapping, error) {
	source, err := getRequiredField(record, columnMap, "source")
	if err != nil {
		return model.FieldMapping{}, err
	}

	destination, err := getRequiredField(record, columnMap, "destination")
	if err != nil {
		return model.FieldMapping{}, err
	}

	fieldMapping := model.FieldMapping{
		Source:      source,
		Destination: destination,
	}

	for _, name := range strings.Split(getOptionalField(record, columnMap, "transformers"), ";") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		fieldMapping.Transformers = append(fieldMapping.Transformers, model.TransformerConfig{Name: name})
	}

	return fieldMapping, nil
}

// getRequiredField retrieves a field from a CSV record, ensuring it is not empty.
func getRequiredField(record []string, columnMap map[string]int, field string) (string, error) {
	if index, exists := columnMap[field]; exists && index < len(record) {
		value := strings.TrimSpace(record[index])
		if value == "" {
			return "", fmt.Errorf("required field '%s' is empty", field)
		}
		return value, nil
	}
	return "", fmt.Errorf("required field '%s' not found in record", field)
}

// getOptionalField retrieves a field from a CSV record, returning an empty
// string when the column is absent.
func getOptionalField(record []string, columnMap map[string]int, field string) string {
	if index, exists := columnMap[field]; exists && index < len(record) {
		return strings.TrimSpace(record[index])
	}
	return ""
}

// ProcessJSON parses and stores integration mappings from a JSON file.
func ProcessJSON(ctx context.Context, importID string, reader io.Reader, store StoreFunc) (int, error) {
	decoder := json.NewDecoder(reader)
	var mappings []model.IntegrationMapping
	// Decode the JSON data into a slice of IntegrationMapping objects.
	if err := decoder.Decode(&mappings); err != nil {
		return 0, err
	}

	// Store each parsed mapping, filling in identifiers where absent.
	for _, mapping := range mappings {
		if mapping.MappingID == "" {
			mapping.MappingID = model.GenerateUUIDWithSuffix("mapping")
		}
		if mapping.CreatedAt.IsZero() {
			mapping.CreatedAt = time.Now()
		}
		if err := store(ctx, importID, mapping); err != nil {
			return 0, err
		}
	}

	return len(mappings), nil
}
