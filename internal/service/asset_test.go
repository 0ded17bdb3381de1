package service

import (
	"context"
	"testing"

	"github.com/reqtrack/reqtrack/internal/model"
	"github.com/reqtrack/reqtrack/internal/storage"
)

func TestAssetVersioning(t *testing.T) {
	e := newEnv(t)
	svc := e.assetService()
	dev := e.user(t, "Dev", model.RoleTeamMember)
	p := e.project(t, "P1", nil, dev)
	ctx := context.Background()

	v1 := upload("logo.png", "image/png", 100)
	a, err := svc.Upload(ctx, dev, AssetInput{Project: p.ID.Hex(), Tags: []string{"brand"}}, &v1)
	if err != nil {
		t.Fatal(err)
	}
	if a.Version != 1 || a.Type != model.AssetImage || a.Name != "logo.png" || len(a.PreviousVersions) != 0 {
		t.Fatalf("uploaded %+v", a.Asset)
	}

	history := []model.AssetVersion{}
	cur := a
	for i := 2; i <= 3; i++ {
		next := upload("logo.svg", "image/svg+xml", 200)
		updated, err := svc.Update(ctx, dev, a.ID.Hex(), AssetPatch{}, &next)
		if err != nil {
			t.Fatal(err)
		}
		history = append(history, model.AssetVersion{FileURL: cur.FileURL, Version: cur.Version})
		if updated.Version != cur.Version+1 {
			t.Fatalf("version = %d, want %d", updated.Version, cur.Version+1)
		}
		cur = updated
	}

	stored, _ := e.assets.GetByID(ctx, a.ID)
	if stored.Version != 3 || len(stored.PreviousVersions) != 2 {
		t.Fatalf("stored %+v", stored)
	}
	for i, want := range history {
		got := stored.PreviousVersions[i]
		if got.FileURL != want.FileURL || got.Version != want.Version {
			t.Fatalf("previousVersions[%d] = %+v, want %+v", i, got, want)
		}
	}
	if stored.FileURL != cur.FileURL || stored.FileURL == a.FileURL {
		t.Fatal("active file not replaced")
	}

	if _, err := svc.Delete(ctx, dev, a.ID.Hex()); err != nil {
		t.Fatal(err)
	}
	if len(e.files.removed) != 3 {
		t.Fatalf("removed %v, want all three versions", e.files.removed)
	}
}

func TestAssetVersionConflict(t *testing.T) {
	e := newEnv(t)
	svc := e.assetService()
	mgr := e.user(t, "Max", model.RoleManager)
	p := e.project(t, "P1", nil)
	ctx := context.Background()

	f := upload("brief.pdf", "application/pdf", 10)
	a, err := svc.Upload(ctx, mgr, AssetInput{Project: p.ID.Hex(), Name: "Brief"}, &f)
	if err != nil {
		t.Fatal(err)
	}
	e.assets.racePush = true
	next := upload("brief-v2.pdf", "application/pdf", 10)
	_, err = svc.Update(ctx, mgr, a.ID.Hex(), AssetPatch{}, &next)
	wantKind(t, err, KindConflict)
	if len(e.files.removed) != 1 || e.files.removed[0] == a.FileURL {
		t.Fatalf("orphaned upload not removed: %v", e.files.removed)
	}
}

func TestAssetPermissions(t *testing.T) {
	e := newEnv(t)
	svc := e.assetService()
	dev := e.user(t, "Dev", model.RoleTeamMember)
	peer := e.user(t, "Pat", model.RoleTeamMember)
	outsider := e.user(t, "Out", model.RoleClient)
	p := e.project(t, "P1", nil, dev, peer)
	ctx := context.Background()

	f := upload("a.pdf", "application/pdf", 10)
	a, err := svc.Upload(ctx, dev, AssetInput{Project: p.ID.Hex()}, &f)
	if err != nil {
		t.Fatal(err)
	}
	if n := e.notes.ofType(peer.ID, model.NotifyAssetUploaded); n != 1 {
		t.Fatalf("upload notifications = %d", n)
	}

	_, err = svc.Update(ctx, peer, a.ID.Hex(), AssetPatch{Name: strp("mine")}, nil)
	wantKind(t, err, KindForbidden)
	_, err = svc.Delete(ctx, peer, a.ID.Hex())
	wantKind(t, err, KindForbidden)
	_, err = svc.Get(ctx, outsider, a.ID.Hex())
	wantKind(t, err, KindNotFound)

	_, err = svc.Upload(ctx, outsider, AssetInput{Project: p.ID.Hex()}, &f)
	wantKind(t, err, KindNotFound)
}

func TestAssetUploadValidation(t *testing.T) {
	e := newEnv(t)
	svc := e.assetService()
	mgr := e.user(t, "Max", model.RoleManager)
	p := e.project(t, "P1", nil)

	bad := upload("virus.exe", "application/octet-stream", 10)
	empty := upload("empty.pdf", "application/pdf", 0)
	ok := upload("fine.pdf", "application/pdf", 10)
	tests := []struct {
		name string
		in   AssetInput
		file *storage.Upload
	}{
		{"no file", AssetInput{Project: p.ID.Hex()}, nil},
		{"blocked", AssetInput{Project: p.ID.Hex()}, &bad},
		{"empty", AssetInput{Project: p.ID.Hex()}, &empty},
		{"no project", AssetInput{}, &ok},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), mgr, tt.in, tt.file)
			wantKind(t, err, KindValidation)
		})
	}
	if len(e.files.saved) != 0 {
		t.Fatal("rejected upload reached storage")
	}
}

func TestAssetMetadataUpdate(t *testing.T) {
	e := newEnv(t)
	svc := e.assetService()
	mgr := e.user(t, "Max", model.RoleManager)
	p := e.project(t, "P1", nil)
	ctx := context.Background()

	f := upload("a.pdf", "application/pdf", 10)
	a, err := svc.Upload(ctx, mgr, AssetInput{Project: p.ID.Hex()}, &f)
	if err != nil {
		t.Fatal(err)
	}
	tags := []string{"final", ""}
	got, err := svc.Update(ctx, mgr, a.ID.Hex(), AssetPatch{Name: strp("Contract"), Tags: &tags}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Contract" || len(got.Tags) != 1 || got.Version != 1 {
		t.Fatalf("metadata update %+v", got.Asset)
	}
}
