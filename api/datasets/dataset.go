package datasets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/socrata/socrata-sdk-go/model"
	"github.com/socrata/socrata-sdk-go/pkg/operation"
	"github.com/socrata/socrata-sdk-go/utils"
)

const (
	permissionPublic  = "public.read"
	permissionPrivate = "private"
)

// Dataset is a handle on one dataset and its rows, columns and metadata.
type Dataset struct {
	client *Client
	id     string
}

// ID returns the dataset identifier, e.g. "abcd-1234".
func (d *Dataset) ID() string {
	return d.id
}

func (d *Dataset) viewURI() string {
	return "/views/" + url.PathEscape(d.id)
}

func (d *Dataset) rowsURI() string {
	return d.viewURI() + "/rows.json"
}

func (d *Dataset) rowURI(rowID string) string {
	return d.viewURI() + "/rows/" + url.PathEscape(rowID) + ".json"
}

// Metadata returns the dataset description as sent by the server.
func (d *Dataset) Metadata(ctx context.Context) (map[string]interface{}, error) {
	env, err := d.client.do(ctx, http.MethodGet, d.viewURI()+".json", nil)
	if err != nil {
		return nil, fmt.Errorf("error while reading metadata of %s: %w", d.id, err)
	}
	if env.Kind != utils.KindObject {
		return nil, fmt.Errorf("error while reading metadata of %s: expected an object, got %s", d.id, env.Kind)
	}
	return env.Object, nil
}

// SetName renames the dataset.
func (d *Dataset) SetName(ctx context.Context, name string) error {
	return d.update(ctx, map[string]interface{}{"name": name})
}

// SetDescription replaces the dataset description.
func (d *Dataset) SetDescription(ctx context.Context, description string) error {
	return d.update(ctx, map[string]interface{}{"description": description})
}

// SetTags replaces the dataset tags.
func (d *Dataset) SetTags(ctx context.Context, tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	return d.update(ctx, map[string]interface{}{"tags": tags})
}

// SetAttribution sets the attribution and its link.
func (d *Dataset) SetAttribution(ctx context.Context, attribution, link string) error {
	return d.update(ctx, map[string]interface{}{"attribution": attribution, "attributionLink": link})
}

func (d *Dataset) update(ctx context.Context, fields map[string]interface{}) error {
	if _, err := d.client.do(ctx, http.MethodPut, d.viewURI()+".json", fields); err != nil {
		return fmt.Errorf("error while updating %s: %w", d.id, err)
	}
	return nil
}

// SetPublic makes the dataset publicly readable, or private again.
func (d *Dataset) SetPublic(ctx context.Context, public bool) error {
	value := permissionPrivate
	if public {
		value = permissionPublic
	}
	query := url.Values{}
	query.Set("method", "setPermission")
	query.Set("value", value)
	if _, err := d.client.do(ctx, http.MethodPut, d.viewURI()+".json?"+query.Encode(), nil); err != nil {
		return fmt.Errorf("error while setting permission of %s: %w", d.id, err)
	}
	return nil
}

// Columns returns the columns of the dataset.
func (d *Dataset) Columns(ctx context.Context) ([]model.Column, error) {
	env, err := d.client.do(ctx, http.MethodGet, d.viewURI()+"/columns.json", nil)
	if err != nil {
		return nil, fmt.Errorf("error while reading columns of %s: %w", d.id, err)
	}
	var columns []model.Column
	if err := decode(env, &columns); err != nil {
		return nil, fmt.Errorf("error while reading columns of %s: %w", d.id, err)
	}
	return columns, nil
}

// AddColumn appends a column and returns it as created by the server.
func (d *Dataset) AddColumn(ctx context.Context, column model.Column) (model.Column, error) {
	env, err := d.client.do(ctx, http.MethodPost, d.viewURI()+"/columns.json", column)
	if err != nil {
		return model.Column{}, fmt.Errorf("error while adding column %q to %s: %w", column.Name, d.id, err)
	}
	var created model.Column
	if err := decode(env, &created); err != nil {
		return model.Column{}, fmt.Errorf("error while adding column %q to %s: %w", column.Name, d.id, err)
	}
	return created, nil
}

// Rows returns every row of the dataset.
func (d *Dataset) Rows(ctx context.Context) ([]model.Row, error) {
	env, err := d.client.do(ctx, http.MethodGet, d.rowsURI(), nil)
	if err != nil {
		return nil, fmt.Errorf("error while reading rows of %s: %w", d.id, err)
	}
	var rows []model.Row
	if err := decode(env, &rows); err != nil {
		return nil, fmt.Errorf("error while reading rows of %s: %w", d.id, err)
	}
	return rows, nil
}

// AddRow inserts one row right away.
func (d *Dataset) AddRow(ctx context.Context, row model.Row) (model.Row, error) {
	env, err := d.client.do(ctx, http.MethodPost, d.rowsURI(), row)
	if err != nil {
		return nil, fmt.Errorf("error while adding row to %s: %w", d.id, err)
	}
	var created model.Row
	if err := decode(env, &created); err != nil {
		return nil, fmt.Errorf("error while adding row to %s: %w", d.id, err)
	}
	return created, nil
}

// UpdateRow replaces the row rowID right away.
func (d *Dataset) UpdateRow(ctx context.Context, rowID string, row model.Row) error {
	if _, err := d.client.do(ctx, http.MethodPut, d.rowURI(rowID), row); err != nil {
		return fmt.Errorf("error while updating row %s of %s: %w", rowID, d.id, err)
	}
	return nil
}

// DeleteRow removes the row rowID right away.
func (d *Dataset) DeleteRow(ctx context.Context, rowID string) error {
	if _, err := d.client.do(ctx, http.MethodDelete, d.rowURI(rowID), nil); err != nil {
		return fmt.Errorf("error while deleting row %s of %s: %w", rowID, d.id, err)
	}
	return nil
}

// QueueAddRow defers the insertion of row until the next flush.
func (d *Dataset) QueueAddRow(row model.Row) error {
	body, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("error in marshaling row: %w", err)
	}
	d.client.batch.Enqueue(http.MethodPost, d.rowsURI(), body)
	return nil
}

// QueueUpdateRow defers the update of rowID until the next flush.
func (d *Dataset) QueueUpdateRow(rowID string, row model.Row) error {
	body, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("error in marshaling row: %w", err)
	}
	d.client.batch.Enqueue(http.MethodPut, d.rowURI(rowID), body)
	return nil
}

// QueueDeleteRow defers the removal of rowID until the next flush.
func (d *Dataset) QueueDeleteRow(rowID string) {
	d.client.batch.Enqueue(http.MethodDelete, d.rowURI(rowID), nil)
}

// UploadFile attaches a file to the dataset and returns the file id
// assigned by the server.
func (d *Dataset) UploadFile(ctx context.Context, fileName string, content io.Reader) (string, error) {
	env, err := d.client.transport.Upload(ctx, d.viewURI()+"/files", fileName, content)
	if err == nil {
		err = env.Err()
	}
	if err != nil {
		return "", fmt.Errorf("error while uploading %s to %s: %w", fileName, d.id, err)
	}
	fileID := env.String("file_id")
	if fileID == "" {
		return "", fmt.Errorf("error while uploading %s to %s: response carries no file id", fileName, d.id)
	}
	return fileID, nil
}

// Copy duplicates the dataset, rows included, and returns the copy.
func (d *Dataset) Copy(ctx context.Context) (*Dataset, error) {
	return d.copy(ctx, operation.MethodCopy)
}

// CopySchema duplicates the dataset columns without rows and returns the copy.
func (d *Dataset) CopySchema(ctx context.Context) (*Dataset, error) {
	return d.copy(ctx, operation.MethodCopySchema)
}

func (d *Dataset) copy(ctx context.Context, method operation.Method) (*Dataset, error) {
	id, err := d.client.poller.RunUntilComplete(ctx, method, d.id)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("%s of %s returned no dataset id", method, d.id)
	}
	return d.client.Dataset(id), nil
}

// Publish publishes the dataset, waiting until the server is done.
func (d *Dataset) Publish(ctx context.Context) error {
	_, err := d.client.poller.RunUntilComplete(ctx, operation.MethodPublish, d.id)
	return err
}

// Delete removes the dataset.
func (d *Dataset) Delete(ctx context.Context) error {
	if _, err := d.client.do(ctx, http.MethodDelete, d.viewURI()+".json", nil); err != nil {
		return fmt.Errorf("error while deleting %s: %w", d.id, err)
	}
	return nil
}
