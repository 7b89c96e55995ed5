package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/reqforge/backend/internal/model"
	"github.com/reqforge/backend/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func sampleSchema() model.TemplateSchema {
	return model.TemplateSchema{
		Pages: []model.TemplatePage{{Fields: []model.TemplateField{
			{Name: "title", X: 20, Y: 20, Width: 170, Height: 10, FontSize: 18},
			{Name: "customer", X: 20, Y: 35, Width: 170, Height: 8},
			{Name: "requirements", Type: model.FieldTypeMultiline, X: 20, Y: 50, Width: 170, Height: 100},
		}}, {Fields: []model.TemplateField{
			{Name: "summary", Type: model.FieldTypeMultiline, X: 20, Y: 20, Width: 170, Height: 200},
		}}},
		StaticText: []model.StaticText{{Page: 1, Text: "Confidential", X: 20, Y: 280}},
	}
}

func newTemplate(t *testing.T, env *testEnv, schema model.TemplateSchema) *model.DocumentTemplate {
	t.Helper()
	tmpl := &model.DocumentTemplate{Name: "Proposal", Schema: datatypes.NewJSONType(schema)}
	require.NoError(t, NewTemplateService(env.db, env.store).Create(tmpl))
	return tmpl
}

func TestTemplateService_SchemaValidation(t *testing.T) {
	env := newEnv(t)
	svc := NewTemplateService(env.db, env.store)

	tmpl := newTemplate(t, env, sampleSchema())
	got, err := svc.GetByID(tmpl.ID)
	require.NoError(t, err)
	schema := got.Schema.Data()
	assert.Equal(t, "A4", schema.PageSize)
	assert.Equal(t, "P", schema.Orientation)
	assert.Equal(t, model.FieldTypeText, schema.Pages[0].Fields[0].Type)

	bad := sampleSchema()
	bad.PageSize = "A3"
	err = svc.Create(&model.DocumentTemplate{Name: "x", Schema: datatypes.NewJSONType(bad)})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "40001"))

	dup := sampleSchema()
	dup.Pages[1].Fields[0].Name = "title"
	_, err = svc.Update(tmpl.ID, map[string]interface{}{"schema": dup})
	require.Error(t, err)

	landscape := sampleSchema()
	landscape.Orientation = "L"
	got, err = svc.Update(tmpl.ID, map[string]interface{}{"schema": landscape, "category": "sales"})
	require.NoError(t, err)
	assert.Equal(t, "L", got.Schema.Data().Orientation)
	assert.Equal(t, "sales", got.Category)
}

func TestTemplateService_ReplaceFieldMappings(t *testing.T) {
	env := newEnv(t)
	svc := NewTemplateService(env.db, env.store)
	tmpl := newTemplate(t, env, sampleSchema())

	cases := []struct {
		name    string
		mapping model.FieldMapping
	}{
		{"unknown field", model.FieldMapping{FieldName: "nope", Kind: model.MappingKindStatic}},
		{"ai without prompt", model.FieldMapping{FieldName: "summary", Kind: model.MappingKindAI}},
		{"table not allowed", model.FieldMapping{FieldName: "title", Kind: model.MappingKindDatabase, DataSource: "users", DataField: "email"}},
		{"unknown column", model.FieldMapping{FieldName: "title", Kind: model.MappingKindDatabase, DataSource: "projects", DataField: "secret"}},
		{"unknown kind", model.FieldMapping{FieldName: "title", Kind: "magic"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ReplaceFieldMappings(tmpl.ID, []model.FieldMapping{tc.mapping})
			require.Error(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), "40001"), err.Error())
		})
	}

	_, err := svc.ReplaceFieldMappings(tmpl.ID, []model.FieldMapping{
		{FieldName: "title", Kind: model.MappingKindStatic, StaticValue: "a"},
		{FieldName: "title", Kind: model.MappingKindStatic, StaticValue: "b"},
	})
	require.Error(t, err)

	list, err := svc.ReplaceFieldMappings(tmpl.ID, []model.FieldMapping{
		{FieldName: "title", Kind: model.MappingKindDatabase, DataSource: "projects", DataField: "name"},
		{FieldName: "summary", Kind: model.MappingKindAI, AIPrompt: "Summarise the scope"},
	})
	require.NoError(t, err)
	require.Len(t, list, 2)

	list, err = svc.ReplaceFieldMappings(tmpl.ID, []model.FieldMapping{
		{FieldName: "customer", Kind: model.MappingKindStatic, StaticValue: "n/a"},
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "customer", list[0].FieldName)

	_, err = svc.FieldMappings(999)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestDocumentService_Generate(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	owner := env.user(t, "owner@example.com", model.RoleManager)
	cust := &model.Customer{Name: "Acme", Industry: "retail"}
	require.NoError(t, NewCustomerService(env.db).Create(cust))
	p, err := NewProjectService(env.db, env.store).Create("Billing", "invoice platform", &cust.ID, owner.ID)
	require.NoError(t, err)
	env.requirement(t, p, owner, "Invoices")
	env.requirement(t, p, owner, "Refunds")

	tmpls := NewTemplateService(env.db, env.store)
	tmpl := newTemplate(t, env, sampleSchema())
	_, err = tmpls.ReplaceFieldMappings(tmpl.ID, []model.FieldMapping{
		{FieldName: "title", Kind: model.MappingKindDatabase, DataSource: "projects", DataField: "name"},
		{FieldName: "customer", Kind: model.MappingKindDatabase, DataSource: "customers", DataField: "name"},
		{FieldName: "requirements", Kind: model.MappingKindDatabase, DataSource: "requirements", DataField: "title"},
		{FieldName: "summary", Kind: model.MappingKindAI, AIPrompt: "Summarise the scope"},
	})
	require.NoError(t, err)

	author := replyWith("```json\n{\"text\": \"Two requirements for Acme.\"}\n```")
	svc := NewDocumentService(env.db, env.store, &fakeProviders{author: author})

	doc, err := svc.Generate(ctx, GenerateDocumentInput{TemplateID: tmpl.ID, ProjectID: p.ID, UserID: owner.ID})
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusGenerated, doc.Status)
	assert.Equal(t, "Proposal - Billing", doc.Name)
	assert.Positive(t, doc.SizeBytes)

	require.Equal(t, 1, author.calls())
	prompt := author.prompts[0]
	assert.Contains(t, prompt, "Summarise the scope")
	assert.Contains(t, prompt, "Customer: Acme (retail)")
	assert.Contains(t, prompt, "REQ-002 Refunds")

	values, err := svc.resolve(ctx, []model.FieldMapping{
		{FieldName: "requirements", Kind: model.MappingKindDatabase, DataSource: "requirements", DataField: "title"},
	}, p, nil)
	require.NoError(t, err)
	assert.Equal(t, "Invoices\nRefunds", values["requirements"])

	_, obj, err := svc.Open(ctx, doc.ID)
	require.NoError(t, err)
	head := make([]byte, 5)
	_, err = io.ReadFull(obj, head)
	obj.Close()
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(head))

	list, total, err := svc.List(p.ID, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.NotNil(t, list[0].Template)

	require.NoError(t, tmpls.Delete(ctx, tmpl.ID))
	_, err = svc.GetByID(doc.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	_, err = env.store.Open(ctx, doc.StorageKey)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestDocumentService_GenerateFailures(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	owner := env.user(t, "owner@example.com", model.RoleManager)
	p := env.project(t, owner, "Billing")
	tmpl := newTemplate(t, env, sampleSchema())
	_, err := NewTemplateService(env.db, env.store).ReplaceFieldMappings(tmpl.ID, []model.FieldMapping{
		{FieldName: "summary", Kind: model.MappingKindAI, AIPrompt: "Summarise"},
	})
	require.NoError(t, err)

	// No key: nothing is written.
	svc := NewDocumentService(env.db, env.store, &fakeProviders{})
	_, err = svc.Generate(ctx, GenerateDocumentInput{TemplateID: tmpl.ID, ProjectID: p.ID, UserID: owner.ID})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "40010"))
	var n int64
	env.db.Model(&model.Document{}).Count(&n)
	assert.Zero(t, n)

	// Provider failure: the document is kept as failed.
	failing := &fakeGenerator{reply: func(string) (string, error) { return "", errors.New("overloaded") }}
	svc = NewDocumentService(env.db, env.store, &fakeProviders{author: failing})
	doc, err := svc.Generate(ctx, GenerateDocumentInput{TemplateID: tmpl.ID, ProjectID: p.ID, Name: "Draft", UserID: owner.ID})
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusFailed, doc.Status)
	assert.Contains(t, doc.ErrorMessage, "overloaded")

	_, _, err = svc.Open(ctx, doc.ID)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "40401"))

	_, err = svc.Generate(ctx, GenerateDocumentInput{TemplateID: tmpl.ID, ProjectID: 999, UserID: owner.ID})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "40401"))
}
