package core

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

func TestService_Preview(t *testing.T) {
	store := &memStore{}
	svc := newTestService(t, store, nil)

	input := `product_id,product_name,category,price,quantity_sold,rating,review_count
P1,Phone,Electronics,300,10,4.5,100
P2,Laptop,Electronics,,5,,20
P1,Phone again,Electronics,100,abc,4,7
`
	resp, err := svc.Preview(context.Background(), strings.NewReader(input), "preview.csv")
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}

	if resp.Summary.TotalRows != 3 {
		t.Errorf("TotalRows = %d, want 3", resp.Summary.TotalRows)
	}
	if resp.Summary.RepairedRows != 2 {
		t.Errorf("RepairedRows = %d, want 2", resp.Summary.RepairedRows)
	}
	if resp.Summary.DuplicateInFile != 1 {
		t.Errorf("DuplicateInFile = %d, want 1", resp.Summary.DuplicateInFile)
	}
	wantDup := []DuplicatePreview{{ProductID: "P1", LineNumbers: []int{2, 4}}}
	if !reflect.DeepEqual(resp.DuplicateSamples, wantDup) {
		t.Errorf("DuplicateSamples = %+v, want %+v", resp.DuplicateSamples, wantDup)
	}

	if len(resp.RepairSamples) != 2 {
		t.Fatalf("len(RepairSamples) = %d, want 2", len(resp.RepairSamples))
	}
	laptop := resp.RepairSamples[0]
	if laptop.LineNumber != 3 || !reflect.DeepEqual(laptop.Changed, []string{ColPrice, ColRating}) {
		t.Errorf("laptop sample = %+v", laptop)
	}
	// Median of 300 and 100.
	if laptop.Cleaned[ColPrice] != "200" || laptop.Raw[ColPrice] != "" {
		t.Errorf("laptop price raw=%q cleaned=%q, want \"\" -> 200", laptop.Raw[ColPrice], laptop.Cleaned[ColPrice])
	}
	if !reflect.DeepEqual(resp.RepairSamples[1].Changed, []string{ColQuantitySold}) {
		t.Errorf("second sample changed = %v, want [quantity_sold]", resp.RepairSamples[1].Changed)
	}

	if len(resp.Report) != 1 || resp.Report[0].Category != "Electronics" {
		t.Errorf("Report = %+v, want one Electronics row", resp.Report)
	}

	if len(store.uploads) != 0 || len(store.products) != 0 {
		t.Error("Preview() must not store anything")
	}
}

func TestService_PreviewLineNumbersFollowSource(t *testing.T) {
	svc := newTestService(t, &memStore{}, nil)

	input := "product_id,product_name,category,price,quantity_sold,rating,review_count\n" +
		"P1,\"Desk\nlamp\",Home,10,1,4,1\n" +
		"\n" +
		"P2,Chair,Home,,2,3,1\n" +
		"P1,Desk lamp,Home,12,1,4,1\n"

	resp, err := svc.Preview(context.Background(), strings.NewReader(input), "lines.csv")
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}

	if len(resp.RepairSamples) != 1 || resp.RepairSamples[0].LineNumber != 5 {
		t.Errorf("RepairSamples = %+v, want one sample on line 5", resp.RepairSamples)
	}
	wantDup := []DuplicatePreview{{ProductID: "P1", LineNumbers: []int{2, 6}}}
	if !reflect.DeepEqual(resp.DuplicateSamples, wantDup) {
		t.Errorf("DuplicateSamples = %+v, want %+v", resp.DuplicateSamples, wantDup)
	}
}

func TestService_PreviewErrors(t *testing.T) {
	svc := newTestService(t, &memStore{}, nil)

	_, err := svc.Preview(context.Background(), strings.NewReader("a,b\n1,2\n"), "bad.csv")
	if err == nil || MapError(err).Code != "VAL004" {
		t.Errorf("Preview(missing columns) error = %v, want VAL004", err)
	}
}
