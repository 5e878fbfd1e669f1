package services_test

import (
	"context"
	"testing"

	"vxextract/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithFamily(ctx, "Bashlite")
	ctx = services.WithSample(ctx, "2020/abc.elf")
	ctx = services.WithStage(ctx, "pack")
	ctx = services.WithRunID(ctx, "run-123")

	if family, ok := services.FamilyFromContext(ctx); !ok || family != "Bashlite" {
		t.Fatalf("unexpected family: %v %v", family, ok)
	}
	if sample, ok := services.SampleFromContext(ctx); !ok || sample != "2020/abc.elf" {
		t.Fatalf("unexpected sample: %v %v", sample, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "pack" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RunIDFromContext(ctx); !ok || rid != "run-123" {
		t.Fatalf("unexpected run id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithFamily(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.FamilyFromContext(ctx); ok {
		t.Fatal("expected no family value")
	}
}
