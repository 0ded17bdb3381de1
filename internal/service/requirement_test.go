package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/reqtrack/reqtrack/internal/model"
	"github.com/reqtrack/reqtrack/internal/storage"
)

func strp(s string) *string { return &s }

func TestCreateRequirement(t *testing.T) {
	e := newEnv(t)
	svc := e.requirementService()
	mgr := e.user(t, "Max", model.RoleManager)
	p := e.project(t, "Portal", nil)

	v, err := svc.Create(context.Background(), mgr, RequirementInput{
		Title:              " Login page ",
		Description:        "Users sign in",
		Project:            p.ID.Hex(),
		AcceptanceCriteria: []string{"has form", " ", "validates"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if v.Title != "Login page" || v.Status != model.StatusDraft || v.Category != model.CategoryFunctional || v.Priority != model.PriorityMedium {
		t.Fatalf("defaults not applied: %+v", v.Requirement)
	}
	if len(v.AcceptanceCriteria) != 2 {
		t.Fatalf("criteria = %v", v.AcceptanceCriteria)
	}
	if v.Project.Name != "Portal" || v.CreatedBy.Name != "Max" {
		t.Fatalf("refs not resolved: %+v %+v", v.Project, v.CreatedBy)
	}
}

func TestCreateRequirementValidation(t *testing.T) {
	e := newEnv(t)
	svc := e.requirementService()
	mgr := e.user(t, "Max", model.RoleManager)
	p := e.project(t, "Portal", nil)

	tests := []struct {
		name string
		in   RequirementInput
		kind Kind
	}{
		{"missing title", RequirementInput{Description: "d", Project: p.ID.Hex()}, KindValidation},
		{"missing description", RequirementInput{Title: "t", Project: p.ID.Hex()}, KindValidation},
		{"missing project", RequirementInput{Title: "t", Description: "d"}, KindValidation},
		{"bad project id", RequirementInput{Title: "t", Description: "d", Project: "xyz"}, KindValidation},
		{"unknown project", RequirementInput{Title: "t", Description: "d", Project: "65f000000000000000000000"}, KindNotFound},
		{"bad category", RequirementInput{Title: "t", Description: "d", Project: p.ID.Hex(), Category: "misc"}, KindValidation},
		{"unknown assignee", RequirementInput{Title: "t", Description: "d", Project: p.ID.Hex(), AssignedTo: "65f000000000000000000000"}, KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), mgr, tt.in)
			wantKind(t, err, tt.kind)
		})
	}
}

func TestClientCreateRestrictions(t *testing.T) {
	e := newEnv(t)
	svc := e.requirementService()
	client := e.user(t, "Cleo", model.RoleClient)
	dev := e.user(t, "Dev", model.RoleTeamMember)
	mine := e.project(t, "Mine", client)
	other := e.project(t, "Other", nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, client, RequirementInput{Title: "t", Description: "d", Project: other.ID.Hex()})
	wantKind(t, err, KindNotFound)

	_, err = svc.Create(ctx, client, RequirementInput{Title: "t", Description: "d", Project: mine.ID.Hex(), Status: "approved"})
	wantKind(t, err, KindValidation)

	_, err = svc.Create(ctx, client, RequirementInput{Title: "t", Description: "d", Project: mine.ID.Hex(), AssignedTo: dev.ID.Hex()})
	wantKind(t, err, KindValidation)

	if _, err := svc.Create(ctx, client, RequirementInput{Title: "t", Description: "d", Project: mine.ID.Hex(), Status: "pending"}); err != nil {
		t.Fatal(err)
	}
}

func TestClientEditByStatus(t *testing.T) {
	for _, status := range model.RequirementStatuses {
		t.Run(string(status), func(t *testing.T) {
			e := newEnv(t)
			svc := e.requirementService()
			client := e.user(t, "Cleo", model.RoleClient)
			p := e.project(t, "Mine", client)
			r := e.requirement(t, p, client, status)

			_, err := svc.Update(context.Background(), client, r.ID.Hex(), RequirementPatch{Title: strp("Edited")})
			if status.ClientEditable() {
				if err != nil {
					t.Fatalf("edit in %s: %v", status, err)
				}
				stored, _ := e.reqs.GetByID(context.Background(), r.ID)
				if stored.Title != "Edited" {
					t.Fatalf("title = %q", stored.Title)
				}
				return
			}
			wantKind(t, err, KindValidation)
			if err.Error() != "cannot update after review" {
				t.Fatalf("message = %q", err.Error())
			}
		})
	}
}

func TestClientUpdateLimits(t *testing.T) {
	e := newEnv(t)
	svc := e.requirementService()
	client := e.user(t, "Cleo", model.RoleClient)
	peer := e.user(t, "Pia", model.RoleClient)
	dev := e.user(t, "Dev", model.RoleTeamMember)
	p := e.project(t, "Shared", client)
	r := e.requirement(t, p, peer, model.StatusPending)
	own := e.requirement(t, p, client, model.StatusDraft)
	ctx := context.Background()

	_, err := svc.Update(ctx, client, r.ID.Hex(), RequirementPatch{Title: strp("x")})
	wantKind(t, err, KindForbidden)

	_, err = svc.Update(ctx, client, own.ID.Hex(), RequirementPatch{Status: strp("approved")})
	wantKind(t, err, KindValidation)

	_, err = svc.Update(ctx, client, own.ID.Hex(), RequirementPatch{AssignedTo: strp(dev.ID.Hex())})
	wantKind(t, err, KindValidation)

	v, err := svc.Update(ctx, client, own.ID.Hex(), RequirementPatch{Status: strp("pending")})
	if err != nil || v.Status != model.StatusPending {
		t.Fatalf("submit draft: %v %v", v.Status, err)
	}
}

func TestUpdateAppliesOnlyPresentFields(t *testing.T) {
	e := newEnv(t)
	svc := e.requirementService()
	mgr := e.user(t, "Max", model.RoleManager)
	dev := e.user(t, "Dev", model.RoleTeamMember)
	p := e.project(t, "Portal", nil)
	r := e.requirement(t, p, mgr, model.StatusPending)
	r.Tags = []string{"keep"}
	_ = e.reqs.Update(context.Background(), r)

	v, err := svc.Update(context.Background(), mgr, r.ID.Hex(), RequirementPatch{
		Status:     strp("approved"),
		AssignedTo: strp(dev.ID.Hex()),
	})
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != model.StatusApproved || v.Title != r.Title || len(v.Tags) != 1 {
		t.Fatalf("patch misapplied: %+v", v.Requirement)
	}
	if v.AssignedTo == nil || v.AssignedTo.Name != "Dev" {
		t.Fatalf("assignee = %+v", v.AssignedTo)
	}
	if n := e.notes.ofType(dev.ID, model.NotifyAssignment); n != 1 {
		t.Fatalf("assignment notifications = %d", n)
	}

	_, err = svc.Update(context.Background(), mgr, "65f000000000000000000000", RequirementPatch{Title: strp("x")})
	wantKind(t, err, KindNotFound)
}

func TestStatusChangeNotifiesCreator(t *testing.T) {
	e := newEnv(t)
	svc := e.requirementService()
	client := e.user(t, "Cleo", model.RoleClient)
	mgr := e.user(t, "Max", model.RoleManager)
	p := e.project(t, "Mine", client)
	r := e.requirement(t, p, client, model.StatusPending)

	if _, err := svc.Update(context.Background(), mgr, r.ID.Hex(), RequirementPatch{Status: strp("rejected")}); err != nil {
		t.Fatal(err)
	}
	if n := e.notes.ofType(client.ID, model.NotifyStatusChanged); n != 1 {
		t.Fatalf("status notifications = %d", n)
	}
}

func TestClientSubmit(t *testing.T) {
	e := newEnv(t)
	svc := e.requirementService()
	client := e.user(t, "Cleo", model.RoleClient)
	mgr := e.user(t, "Max", model.RoleManager)
	admin := e.user(t, "Ada", model.RoleAdmin)
	p1 := e.project(t, "P1", client)

	res, err := svc.ClientSubmit(context.Background(), client, RequirementInput{
		Title:       "Add dark mode",
		Description: "...",
		Project:     p1.ID.Hex(),
		Status:      "approved",
	}, []storage.Upload{
		upload("mock.pdf", "application/pdf", 1024),
		upload("notes.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", 2048),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Requirement.Status != model.StatusPending {
		t.Fatalf("status = %s", res.Requirement.Status)
	}
	if len(res.Assets) != 2 {
		t.Fatalf("assets = %d", len(res.Assets))
	}
	for _, a := range res.Assets {
		if a.Project != p1.ID || a.Requirement == nil || *a.Requirement != res.Requirement.ID || a.Version != 1 {
			t.Fatalf("asset %+v", a)
		}
		tags := sortedStrings(a.Tags)
		if len(tags) != 2 || tags[0] != model.TagClientUpload || tags[1] != model.TagRequirementAttachment {
			t.Fatalf("tags = %v", a.Tags)
		}
	}
	if res.Assets[0].Type != model.AssetDocument {
		t.Fatalf("type = %s", res.Assets[0].Type)
	}

	stored, _ := e.reqs.GetByID(context.Background(), res.Requirement.ID)
	if len(stored.Attachments) != 2 || stored.Attachments[0].URL != res.Assets[0].FileURL {
		t.Fatalf("attachments = %+v", stored.Attachments)
	}
	for _, staff := range []*model.User{mgr, admin} {
		if n := e.notes.ofType(staff.ID, model.NotifyRequirementSubmitted); n != 1 {
			t.Fatalf("%s got %d submission notifications", staff.Name, n)
		}
	}
	if e.mailer.count() != 2 {
		t.Fatalf("submission emails = %d", e.mailer.count())
	}
}

func TestClientSubmitRejectsBeforeWriting(t *testing.T) {
	e := newEnv(t)
	svc := e.requirementService()
	client := e.user(t, "Cleo", model.RoleClient)
	p := e.project(t, "P1", client)
	in := RequirementInput{Title: "t", Description: "d", Project: p.ID.Hex()}

	tests := []struct {
		name  string
		files []storage.Upload
	}{
		{"blocked extension", []storage.Upload{upload("ok.pdf", "application/pdf", 10), upload("run.exe", "application/octet-stream", 10)}},
		{"too large", []storage.Upload{upload("huge.pdf", "application/pdf", 51 << 20)}},
		{"too many", []storage.Upload{
			upload("1.pdf", "", 1), upload("2.pdf", "", 1), upload("3.pdf", "", 1),
			upload("4.pdf", "", 1), upload("5.pdf", "", 1), upload("6.pdf", "", 1),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ClientSubmit(context.Background(), client, in, tt.files)
			wantKind(t, err, KindValidation)
			if len(e.reqs.rows) != 0 || len(e.assets.rows) != 0 || len(e.files.saved) != 0 {
				t.Fatal("rejected submission wrote data")
			}
		})
	}
}

func TestConcurrentComments(t *testing.T) {
	e := newEnv(t)
	svc := e.requirementService()
	client := e.user(t, "Cleo", model.RoleClient)
	mgr := e.user(t, "Max", model.RoleManager)
	p := e.project(t, "P1", client)
	r := e.requirement(t, p, client, model.StatusPending)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			author := client
			if i%2 == 0 {
				author = mgr
			}
			_, err := svc.AddComment(context.Background(), author, r.ID.Hex(), fmt.Sprintf("comment %d", i))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}

	stored, _ := e.reqs.GetByID(context.Background(), r.ID)
	if len(stored.Comments) != n {
		t.Fatalf("comments = %d, want %d", len(stored.Comments), n)
	}
	seen := map[string]bool{}
	for _, c := range stored.Comments {
		seen[c.Text] = true
	}
	for i := 0; i < n; i++ {
		if !seen[fmt.Sprintf("comment %d", i)] {
			t.Fatalf("comment %d lost", i)
		}
	}
}

func TestAddComment(t *testing.T) {
	e := newEnv(t)
	svc := e.requirementService()
	client := e.user(t, "Cleo", model.RoleClient)
	mgr := e.user(t, "Max", model.RoleManager)
	p := e.project(t, "P1", client)
	r := e.requirement(t, p, client, model.StatusPending)

	_, err := svc.AddComment(context.Background(), mgr, r.ID.Hex(), "   ")
	wantKind(t, err, KindValidation)

	c, err := svc.AddComment(context.Background(), mgr, r.ID.Hex(), " Looks good ")
	if err != nil {
		t.Fatal(err)
	}
	if c.Text != "Looks good" || c.User == nil || c.User.Name != "Max" {
		t.Fatalf("comment = %+v", c)
	}
	if n := e.notes.ofType(client.ID, model.NotifyCommentAdded); n != 1 {
		t.Fatalf("comment notifications = %d", n)
	}
	if n := e.notes.ofType(mgr.ID, model.NotifyCommentAdded); n != 0 {
		t.Fatal("author notified of own comment")
	}
}

func TestDeleteRequirementCascades(t *testing.T) {
	e := newEnv(t)
	svc := e.requirementService()
	client := e.user(t, "Cleo", model.RoleClient)
	admin := e.user(t, "Ada", model.RoleAdmin)
	p := e.project(t, "P1", client)
	ctx := context.Background()

	res, err := svc.ClientSubmit(ctx, client, RequirementInput{Title: "t", Description: "d", Project: p.ID.Hex()},
		[]storage.Upload{upload("a.pdf", "application/pdf", 5)})
	if err != nil {
		t.Fatal(err)
	}
	keep := e.requirement(t, p, client, model.StatusDraft)
	if _, err := svc.AddComment(ctx, admin, keep.ID.Hex(), "unrelated"); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Delete(ctx, admin, res.Requirement.ID.Hex()); err != nil {
		t.Fatal(err)
	}
	if _, err := e.reqs.GetByID(ctx, res.Requirement.ID); err == nil {
		t.Fatal("requirement still stored")
	}
	if len(e.assets.rows) != 0 {
		t.Fatalf("assets left: %d", len(e.assets.rows))
	}
	if len(e.files.removed) != 1 || e.files.removed[0] != res.Assets[0].FileURL {
		t.Fatalf("removed files = %v", e.files.removed)
	}
	for _, n := range e.notes.rows {
		if n.Link == requirementLink(res.Requirement.ID) {
			t.Fatal("notification for deleted requirement kept")
		}
	}
	if e.notes.ofType(client.ID, model.NotifyCommentAdded) != 1 {
		t.Fatal("unrelated notification removed")
	}

	_, err = svc.Delete(ctx, admin, res.Requirement.ID.Hex())
	wantKind(t, err, KindNotFound)
}

func TestRequirementScope(t *testing.T) {
	e := newEnv(t)
	svc := e.requirementService()
	cleo := e.user(t, "Cleo", model.RoleClient)
	pia := e.user(t, "Pia", model.RoleClient)
	dev := e.user(t, "Dev", model.RoleTeamMember)
	mgr := e.user(t, "Max", model.RoleManager)
	p1 := e.project(t, "P1", cleo, dev)
	p2 := e.project(t, "P2", pia)
	r1 := e.requirement(t, p1, cleo, model.StatusPending)
	r2 := e.requirement(t, p2, pia, model.StatusPending)
	ctx := context.Background()

	_, err := svc.Get(ctx, cleo, r2.ID.Hex())
	wantKind(t, err, KindNotFound)
	if _, err := svc.Get(ctx, dev, r1.ID.Hex()); err != nil {
		t.Fatalf("team member get: %v", err)
	}

	tests := []struct {
		actor *model.User
		want  int
	}{
		{cleo, 1}, {pia, 1}, {dev, 1}, {mgr, 2},
	}
	for _, tt := range tests {
		list, pg, err := svc.List(ctx, tt.actor, RequirementQuery{})
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != tt.want || pg.Total != int64(tt.want) {
			t.Fatalf("%s sees %d, want %d", tt.actor.Name, len(list), tt.want)
		}
	}

	list, _, err := svc.List(ctx, mgr, RequirementQuery{Project: p2.ID.Hex()})
	if err != nil || len(list) != 1 || list[0].ID != r2.ID {
		t.Fatalf("project filter: %v %v", list, err)
	}
	_, _, err = svc.List(ctx, mgr, RequirementQuery{Status: "bogus"})
	wantKind(t, err, KindValidation)
}
