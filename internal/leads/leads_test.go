package leads

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/zulandar/pipedesk/internal/crmerr"
	"github.com/zulandar/pipedesk/internal/db"
	"github.com/zulandar/pipedesk/internal/models"
	"gorm.io/gorm"
)

const actor = "user-1"

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	return gormDB
}

func mustFolder(t *testing.T, gormDB *gorm.DB, name string) *models.LeadFolder {
	t.Helper()
	f, err := CreateFolder(gormDB, FolderOpts{Name: name, UserID: actor})
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	return f
}

// uploadCounts stores a file with total rows, the first reached of them
// marked as contacted.
func uploadCounts(t *testing.T, gormDB *gorm.DB, folderID string, total, reached int) *models.LeadFile {
	t.Helper()
	rows := make([]map[string]string, total)
	for i := range rows {
		rows[i] = map[string]string{"name": fmt.Sprintf("lead %d", i), "reached": "false"}
		if i < reached {
			rows[i]["reached"] = "true"
		}
	}
	file, err := Upload(gormDB, UploadOpts{
		FolderID: folderID,
		FileName: fmt.Sprintf("%d-%d.csv", total, reached),
		Headers:  []string{"name", "reached"},
		Rows:     rows,
		ActorID:  actor,
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	return file
}

func TestParseDelimitedText_RoundTrip(t *testing.T) {
	got := ParseDelimitedText("name,phone\nJohn,123")
	if !reflect.DeepEqual(got.Headers, []string{"name", "phone", "reached"}) {
		t.Errorf("Headers = %v", got.Headers)
	}
	want := []map[string]string{{"name": "John", "phone": "123", "reached": "false"}}
	if !reflect.DeepEqual(got.Rows, want) {
		t.Errorf("Rows = %v, want %v", got.Rows, want)
	}
}

func TestParseDelimitedText(t *testing.T) {
	tests := []struct {
		name    string
		content string
		headers []string
		rows    []map[string]string
	}{
		{
			name:    "empty",
			content: "",
			headers: []string{},
			rows:    []map[string]string{},
		},
		{
			name:    "whitespace only",
			content: " \n\t\n",
			headers: []string{},
			rows:    []map[string]string{},
		},
		{
			name:    "header only",
			content: "name,email",
			headers: []string{"name", "email", "reached"},
			rows:    []map[string]string{},
		},
		{
			name:    "quoted fields and CRLF",
			content: "\"name\", \"phone\"\r\n\"Ana\",\"555\"\r\n",
			headers: []string{"name", "phone", "reached"},
			rows:    []map[string]string{{"name": "Ana", "phone": "555", "reached": "false"}},
		},
		{
			name:    "missing trailing fields",
			content: "a,b,c\n1",
			headers: []string{"a", "b", "c", "reached"},
			rows:    []map[string]string{{"a": "1", "b": "", "c": "", "reached": "false"}},
		},
		{
			name:    "existing reached column",
			content: "name,reached\nAna,true\nBo,\nCy",
			headers: []string{"name", "reached"},
			rows: []map[string]string{
				{"name": "Ana", "reached": "true"},
				{"name": "Bo", "reached": "false"},
				{"name": "Cy", "reached": "false"},
			},
		},
		{
			name:    "blank lines skipped",
			content: "name\nAna\n\nBo",
			headers: []string{"name", "reached"},
			rows: []map[string]string{
				{"name": "Ana", "reached": "false"},
				{"name": "Bo", "reached": "false"},
			},
		},
		{
			name:    "embedded comma splits the field",
			content: "name,city\n\"Roe, Jane\",Lima",
			headers: []string{"name", "city", "reached"},
			rows:    []map[string]string{{"name": "Roe", "city": "Jane", "reached": "false"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDelimitedText(tt.content)
			if !reflect.DeepEqual(got.Headers, tt.headers) {
				t.Errorf("Headers = %#v, want %#v", got.Headers, tt.headers)
			}
			if !reflect.DeepEqual(got.Rows, tt.rows) {
				t.Errorf("Rows = %#v, want %#v", got.Rows, tt.rows)
			}
		})
	}
}

func TestSanitizeField(t *testing.T) {
	tests := map[string]string{
		"  Jo\x00hn  ": "John",
		"\x00\x00":     "",
		"plain":        "plain",
		"\tx y\n":      "x y",
	}
	for in, want := range tests {
		if got := SanitizeField(in); got != want {
			t.Errorf("SanitizeField(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUpload_SanitisesAndNormalisesRows(t *testing.T) {
	gormDB := testDB(t)
	folder := mustFolder(t, gormDB, "Imports")

	file, err := Upload(gormDB, UploadOpts{
		FolderID: folder.ID,
		FileName: " leads\x00.csv ",
		Headers:  []string{" name\x00", "phone"},
		Rows: []map[string]string{
			{"name ": "  Jo\x00hn  ", "phone": "123", "extra": "dropped"},
			{"name": "Ana", "reached": "TRUE"},
		},
		ActorID: actor,
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if file.Name != "leads.csv" {
		t.Errorf("Name = %q", file.Name)
	}

	stored, err := GetFile(gormDB, file.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetFile = %v, %v", stored, err)
	}
	if !reflect.DeepEqual([]string(stored.Columns), []string{"name", "phone", "reached"}) {
		t.Errorf("Columns = %v", stored.Columns)
	}
	if len(stored.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(stored.Rows))
	}

	first := stored.Rows[0].Data.Data()
	if !reflect.DeepEqual(first, map[string]string{"name": "John", "phone": "123", "reached": "false"}) {
		t.Errorf("row 0 = %v", first)
	}
	if stored.Rows[0].Reached {
		t.Error("row 0 flagged as reached")
	}
	if !stored.Rows[1].Reached {
		t.Error("row 1 with reached=TRUE not flagged")
	}
	if stored.Rows[1].Data.Data()["phone"] != "" {
		t.Errorf("missing cell = %q, want empty", stored.Rows[1].Data.Data()["phone"])
	}
}

func TestUpload_Errors(t *testing.T) {
	gormDB := testDB(t)
	folder := mustFolder(t, gormDB, "Imports")
	rows := []map[string]string{{"name": "a"}}

	tests := []struct {
		name string
		opts UploadOpts
		want error
	}{
		{"no actor", UploadOpts{FolderID: folder.ID, FileName: "f.csv", Rows: rows}, crmerr.ErrUnauthorized},
		{"blank name", UploadOpts{FolderID: folder.ID, FileName: " \x00 ", Rows: rows, ActorID: actor}, crmerr.ErrValidation},
		{"unknown folder", UploadOpts{FolderID: "nope", FileName: "f.csv", Rows: rows, ActorID: actor}, crmerr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Upload(gormDB, tt.opts); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	var files, leadRows int64
	gormDB.Model(&models.LeadFile{}).Count(&files)
	gormDB.Model(&models.LeadRow{}).Count(&leadRows)
	if files != 0 || leadRows != 0 {
		t.Errorf("failed uploads left %d files and %d rows", files, leadRows)
	}
}

func TestUpload_AtomicOnLinkFailure(t *testing.T) {
	gormDB := testDB(t)
	folder := mustFolder(t, gormDB, "Imports")
	if err := gormDB.Migrator().DropTable(&models.LeadFileFolder{}); err != nil {
		t.Fatalf("drop link table: %v", err)
	}

	_, err := Upload(gormDB, UploadOpts{
		FolderID: folder.ID,
		FileName: "f.csv",
		Headers:  []string{"name"},
		Rows:     []map[string]string{{"name": "a"}},
		ActorID:  actor,
	})
	if !errors.Is(err, crmerr.ErrIntegrity) {
		t.Fatalf("err = %v, want ErrIntegrity", err)
	}

	var files, leadRows int64
	gormDB.Model(&models.LeadFile{}).Count(&files)
	gormDB.Model(&models.LeadRow{}).Count(&leadRows)
	if files != 0 || leadRows != 0 {
		t.Errorf("rolled-back upload left %d files and %d rows", files, leadRows)
	}
}

func TestFolderAggregates(t *testing.T) {
	gormDB := testDB(t)
	folder := mustFolder(t, gormDB, "Spring")
	a := uploadCounts(t, gormDB, folder.ID, 10, 3)
	b := uploadCounts(t, gormDB, folder.ID, 5, 5)

	got, err := GetFolder(gormDB, folder.ID)
	if err != nil || got == nil {
		t.Fatalf("GetFolder = %v, %v", got, err)
	}
	if got.TotalLeads != 15 || got.ContactedLeads != 8 {
		t.Errorf("totals = %d/%d, want 15/8", got.TotalLeads, got.ContactedLeads)
	}
	if len(got.Files) != 2 {
		t.Fatalf("files = %d, want 2", len(got.Files))
	}
	byID := map[string]FileSummary{got.Files[0].ID: got.Files[0], got.Files[1].ID: got.Files[1]}
	if s := byID[a.ID]; s.TotalLeads != 10 || s.ContactedLeads != 3 {
		t.Errorf("file a = %d/%d, want 10/3", s.TotalLeads, s.ContactedLeads)
	}
	if s := byID[b.ID]; s.TotalLeads != 5 || s.ContactedLeads != 5 {
		t.Errorf("file b = %d/%d, want 5/5", s.TotalLeads, s.ContactedLeads)
	}

	// Counts are recomputed on every read.
	if _, err := SetReached(gormDB, a.Rows[9].ID, true); err != nil {
		t.Fatalf("SetReached: %v", err)
	}
	got, _ = GetFolder(gormDB, folder.ID)
	if got.ContactedLeads != 9 {
		t.Errorf("contacted after SetReached = %d, want 9", got.ContactedLeads)
	}
}

func TestListFolders(t *testing.T) {
	gormDB := testDB(t)
	older := mustFolder(t, gormDB, "Older")
	newer := mustFolder(t, gormDB, "Newer")
	empty := mustFolder(t, gormDB, "Empty")
	gone := mustFolder(t, gormDB, "Gone")
	if err := DeleteFolder(gormDB, gone.ID); err != nil {
		t.Fatalf("DeleteFolder: %v", err)
	}
	// Force a distinct ordering regardless of clock resolution.
	gormDB.Model(&models.LeadFolder{}).Where("id = ?", older.ID).Update("created_at", older.CreatedAt.Add(-2*time.Hour))
	gormDB.Model(&models.LeadFolder{}).Where("id = ?", empty.ID).Update("created_at", empty.CreatedAt.Add(-time.Hour))
	uploadCounts(t, gormDB, newer.ID, 4, 1)
	uploadCounts(t, gormDB, older.ID, 2, 2)

	folders, err := ListFolders(gormDB, Filters{UserID: actor})
	if err != nil {
		t.Fatalf("ListFolders: %v", err)
	}
	var names []string
	for _, f := range folders {
		names = append(names, f.Name)
	}
	if !reflect.DeepEqual(names, []string{"Newer", "Empty", "Older"}) {
		t.Errorf("folders = %v", names)
	}
	if folders[0].TotalLeads != 4 || folders[0].ContactedLeads != 1 {
		t.Errorf("Newer = %d/%d", folders[0].TotalLeads, folders[0].ContactedLeads)
	}
	if folders[1].TotalLeads != 0 || len(folders[1].Files) != 0 {
		t.Errorf("Empty = %+v", folders[1])
	}

	other, err := ListFolders(gormDB, Filters{UserID: "someone-else"})
	if err != nil || len(other) != 0 {
		t.Errorf("filtered list = %v, %v", other, err)
	}
}

func TestFolderCRUD(t *testing.T) {
	gormDB := testDB(t)
	parent := mustFolder(t, gormDB, "Parent")

	child, err := CreateFolder(gormDB, FolderOpts{Name: "Child", ParentID: parent.ID})
	if err != nil {
		t.Fatalf("CreateFolder(child): %v", err)
	}
	if child.ParentID == nil || *child.ParentID != parent.ID {
		t.Errorf("ParentID = %v", child.ParentID)
	}
	if _, err := CreateFolder(gormDB, FolderOpts{Name: "x", ParentID: "nope"}); !errors.Is(err, crmerr.ErrNotFound) {
		t.Errorf("unknown parent err = %v", err)
	}
	if _, err := CreateFolder(gormDB, FolderOpts{Name: " "}); !errors.Is(err, crmerr.ErrValidation) {
		t.Errorf("blank name err = %v", err)
	}

	renamed, err := UpdateFolder(gormDB, child.ID, "Renamed")
	if err != nil || renamed.Name != "Renamed" {
		t.Errorf("UpdateFolder = %v, %v", renamed, err)
	}
	if _, err := UpdateFolder(gormDB, child.ID, ""); !errors.Is(err, crmerr.ErrValidation) {
		t.Errorf("blank rename err = %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := DeleteFolder(gormDB, child.ID); err != nil {
			t.Fatalf("DeleteFolder #%d: %v", i+1, err)
		}
	}
	if got, err := GetFolder(gormDB, child.ID); err != nil || got != nil {
		t.Errorf("GetFolder(deleted) = %v, %v", got, err)
	}
	if _, err := UpdateFolder(gormDB, child.ID, "again"); !errors.Is(err, crmerr.ErrNotFound) {
		t.Errorf("rename deleted err = %v", err)
	}
	if err := DeleteFolder(gormDB, "nope"); !errors.Is(err, crmerr.ErrNotFound) {
		t.Errorf("DeleteFolder(unknown) = %v", err)
	}
}

func TestSetReached(t *testing.T) {
	gormDB := testDB(t)
	folder := mustFolder(t, gormDB, "F")
	file := uploadCounts(t, gormDB, folder.ID, 1, 0)

	row, err := SetReached(gormDB, file.Rows[0].ID, true)
	if err != nil {
		t.Fatalf("SetReached: %v", err)
	}
	if !row.Reached || row.Data.Data()["reached"] != "true" {
		t.Errorf("row = %+v", row)
	}

	stored, _ := GetFile(gormDB, file.ID)
	if !stored.Rows[0].Reached || stored.Rows[0].Data.Data()["reached"] != "true" {
		t.Errorf("stored row = %+v", stored.Rows[0])
	}
	if stored.Rows[0].Data.Data()["name"] != "lead 0" {
		t.Error("other cells lost")
	}

	if _, err := SetReached(gormDB, "nope", true); !errors.Is(err, crmerr.ErrNotFound) {
		t.Errorf("unknown row err = %v", err)
	}
}

func TestExport_ParsesBack(t *testing.T) {
	gormDB := testDB(t)
	folder := mustFolder(t, gormDB, "F")
	parsed := ParseDelimitedText("name,phone\nAna,1\nBo,2\nCy,3")
	file, err := Upload(gormDB, UploadOpts{
		FolderID: folder.ID,
		FileName: "x.csv",
		Headers:  parsed.Headers,
		Rows:     parsed.Rows,
		ActorID:  actor,
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	stored, _ := GetFile(gormDB, file.ID)

	var buf bytes.Buffer
	if err := Export(&buf, stored); err != nil {
		t.Fatalf("Export: %v", err)
	}
	want := "name,phone,reached\nAna,1,false\nBo,2,false\nCy,3,false\n"
	if buf.String() != want {
		t.Errorf("Export =\n%s\nwant\n%s", buf.String(), want)
	}
	if again := ParseDelimitedText(buf.String()); !reflect.DeepEqual(again, parsed) {
		t.Errorf("re-parsed = %+v, want %+v", again, parsed)
	}

	if got, err := GetFile(gormDB, "nope"); err != nil || got != nil {
		t.Errorf("GetFile(unknown) = %v, %v", got, err)
	}
}

func TestExport_EmbeddedQuotesSurviveReimport(t *testing.T) {
	gormDB := testDB(t)
	folder := mustFolder(t, gormDB, "F")
	parsed := ParseDelimitedText("name,note\nJo\"hn,a \"b\"")
	if got := parsed.Rows[0]; got["name"] != `Jo"hn` || got["note"] != `a "b` {
		t.Fatalf("parsed row = %+v", got)
	}
	file, err := Upload(gormDB, UploadOpts{
		FolderID: folder.ID,
		FileName: "quotes.csv",
		Headers:  parsed.Headers,
		Rows:     parsed.Rows,
		ActorID:  actor,
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	stored, _ := GetFile(gormDB, file.ID)

	var buf bytes.Buffer
	if err := Export(&buf, stored); err != nil {
		t.Fatalf("Export: %v", err)
	}
	want := "name,note,reached\nJo\"hn,a \"b,false\n"
	if buf.String() != want {
		t.Errorf("Export = %q, want %q", buf.String(), want)
	}
	if again := ParseDelimitedText(buf.String()); !reflect.DeepEqual(again, parsed) {
		t.Errorf("re-parsed = %+v, want %+v", again, parsed)
	}
}

func TestExport_UnknownFileGetsNil(t *testing.T) {
	gormDB := testDB(t)
	if got, err := GetFile(gormDB, "nope"); err != nil || got != nil {
		t.Errorf("GetFile(unknown) = %v, %v", got, err)
	}
}
