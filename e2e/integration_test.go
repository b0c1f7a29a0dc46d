//go:build e2e

// Package e2e contains end-to-end integration tests using a real DynamoDB
// table. Run with: go test -tags=e2e -v ./e2e/...
//
// Set DYNAMODB_ENDPOINT to target DynamoDB Local; otherwise the default
// AWS configuration chain is used.
package e2e

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/arbor/dynamo"
	"github.com/jacentio/arbor/internal/check"
	"github.com/jacentio/arbor/nest"
)

// Table name - unique per test run to avoid conflicts
const tablePrefix = "arbor-e2e-test"

var (
	testID    string
	tableName string
	ddbClient *dynamodb.Client
)

// Page is the payload type stored at every node in these tests.
type Page struct {
	Title string `dynamodbav:"title"`
}

// --- Test Setup & Teardown ---

func TestMain(m *testing.M) {
	testID = uuid.New().String()[:8]
	tableName = fmt.Sprintf("%s-%s", tablePrefix, testID)
	fmt.Printf("Test table: %s\n", tableName)

	ctx := context.Background()

	var opts []func(*config.LoadOptions) error
	if endpoint := os.Getenv("DYNAMODB_ENDPOINT"); endpoint != "" {
		opts = append(opts,
			config.WithRegion("us-east-1"),
			config.WithBaseEndpoint(endpoint),
		)
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		fmt.Printf("Failed to load AWS config: %v\n", err)
		os.Exit(1)
	}
	ddbClient = dynamodb.NewFromConfig(cfg)

	if err := createTable(ctx); err != nil {
		fmt.Printf("Failed to create table: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := deleteTable(ctx); err != nil {
		fmt.Printf("Failed to delete table: %v\n", err)
	}

	os.Exit(code)
}

func createTable(ctx context.Context) error {
	_, err := ddbClient.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("pk"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeRange},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("pk"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("create table %s: %w", tableName, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(ddbClient)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	}, 2*time.Minute); err != nil {
		return fmt.Errorf("wait for table %s: %w", tableName, err)
	}
	return nil
}

func deleteTable(ctx context.Context) error {
	_, err := ddbClient.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(tableName),
	})
	return err
}

// newTree returns a Tree over a fresh forest partition so tests don't
// interfere with each other.
func newTree(t *testing.T) (*nest.Tree[Page], *dynamo.Repository[Page]) {
	t.Helper()
	repo := dynamo.New[Page](ddbClient, dynamo.Config{
		TableName: tableName,
		Forest:    "forest-" + uuid.New().String()[:8],
	})
	return nest.New[Page](repo, nest.DefaultConfig()), repo
}

// verifyForest fails the test if the stored forest violates any
// nested-sets invariant.
func verifyForest(t *testing.T, repo *dynamo.Repository[Page]) {
	t.Helper()
	ctx := context.Background()
	err := repo.View(ctx, func(v nest.View[Page]) error {
		nodes, err := v.All(ctx)
		if err != nil {
			return err
		}
		spans := make([]check.Span, 0, len(nodes))
		for _, n := range nodes {
			spans = append(spans, check.Span{ID: n.ID, Left: n.Left, Right: n.Right})
		}
		for _, violation := range check.Verify(spans) {
			t.Errorf("invariant violated: %s", violation)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
}

// --- Lifecycle Tests ---

func TestTreeLifecycle(t *testing.T) {
	tree, repo := newTree(t)
	ctx := context.Background()

	root, err := tree.CreateRoot(ctx, Page{Title: "home"})
	if err != nil {
		t.Fatalf("CreateRoot failed: %v", err)
	}
	if root.Left != 1 || root.Right != 2 {
		t.Errorf("root = (%d, %d), want (1, 2)", root.Left, root.Right)
	}

	docs, err := tree.AddChild(ctx, root.ID, Page{Title: "docs"})
	if err != nil {
		t.Fatalf("AddChild docs failed: %v", err)
	}
	blog, err := tree.AddChild(ctx, root.ID, Page{Title: "blog"})
	if err != nil {
		t.Fatalf("AddChild blog failed: %v", err)
	}
	guide, err := tree.AddChild(ctx, docs.ID, Page{Title: "guide"})
	if err != nil {
		t.Fatalf("AddChild guide failed: %v", err)
	}
	verifyForest(t, repo)

	// Payloads round-trip through the value attribute.
	ancestors, err := tree.AncestorsOf(ctx, guide.ID)
	if err != nil {
		t.Fatalf("AncestorsOf failed: %v", err)
	}
	if len(ancestors) != 2 || ancestors[0].Value.Title != "home" || ancestors[1].Value.Title != "docs" {
		t.Fatalf("unexpected ancestors: %+v", ancestors)
	}

	depth, err := tree.DepthOf(ctx, guide.ID)
	if err != nil {
		t.Fatalf("DepthOf failed: %v", err)
	}
	if depth != 2 {
		t.Errorf("depth = %d, want 2", depth)
	}

	// Relocate the guide under blog, then remove the docs subtree.
	if err := tree.MoveSubtree(ctx, guide.ID, blog.ID); err != nil {
		t.Fatalf("MoveSubtree failed: %v", err)
	}
	verifyForest(t, repo)

	removed, err := tree.DeleteSubtree(ctx, docs.ID)
	if err != nil {
		t.Fatalf("DeleteSubtree failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	verifyForest(t, repo)

	children, err := tree.ChildrenOf(ctx, root.ID)
	if err != nil {
		t.Fatalf("ChildrenOf failed: %v", err)
	}
	if len(children) != 1 || children[0].Value.Title != "blog" {
		t.Fatalf("unexpected children: %+v", children)
	}
}

func TestMoveSubtree_RejectsCycle(t *testing.T) {
	tree, repo := newTree(t)
	ctx := context.Background()

	root, err := tree.CreateRoot(ctx, Page{Title: "root"})
	if err != nil {
		t.Fatalf("CreateRoot failed: %v", err)
	}
	child, err := tree.AddChild(ctx, root.ID, Page{Title: "child"})
	if err != nil {
		t.Fatalf("AddChild failed: %v", err)
	}

	if err := tree.MoveSubtree(ctx, root.ID, child.ID); err == nil {
		t.Fatal("expected cycle rejection")
	}
	verifyForest(t, repo)
}

func TestBuildTree(t *testing.T) {
	tree, _ := newTree(t)
	ctx := context.Background()

	root, err := tree.CreateRoot(ctx, Page{Title: "root"})
	if err != nil {
		t.Fatalf("CreateRoot failed: %v", err)
	}
	a, err := tree.AddChild(ctx, root.ID, Page{Title: "a"})
	if err != nil {
		t.Fatalf("AddChild failed: %v", err)
	}
	if _, err := tree.AddChild(ctx, a.ID, Page{Title: "aa"}); err != nil {
		t.Fatalf("AddChild failed: %v", err)
	}

	built, err := tree.BuildTree(ctx, root.ID)
	if err != nil {
		t.Fatalf("BuildTree failed: %v", err)
	}
	if len(built.Children) != 1 || len(built.Children[0].Children) != 1 {
		t.Errorf("unexpected shape: %+v", built)
	}
	if built.Children[0].Children[0].Value.Title != "aa" {
		t.Errorf("unexpected leaf: %+v", built.Children[0].Children[0])
	}
}

// --- Concurrency Tests ---

func TestConcurrentInserts_RetryOnConflict(t *testing.T) {
	tree, repo := newTree(t)
	ctx := context.Background()

	root, err := tree.CreateRoot(ctx, Page{Title: "root"})
	if err != nil {
		t.Fatalf("CreateRoot failed: %v", err)
	}

	const writers = 4
	var wg sync.WaitGroup
	errs := make(chan error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			page := Page{Title: fmt.Sprintf("child-%d", i)}
			for attempt := 0; attempt < 20; attempt++ {
				_, err := tree.AddChild(ctx, root.ID, page)
				if err == nil {
					return
				}
				if !nest.IsRetryable(err) {
					errs <- fmt.Errorf("writer %d: %w", i, err)
					return
				}
				time.Sleep(time.Duration(10*(attempt+1)) * time.Millisecond)
			}
			errs <- fmt.Errorf("writer %d: retries exhausted", i)
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	descendants, err := tree.DescendantsOf(ctx, root.ID)
	if err != nil {
		t.Fatalf("DescendantsOf failed: %v", err)
	}
	if len(descendants) != writers {
		t.Errorf("descendants = %d, want %d", len(descendants), writers)
	}
	verifyForest(t, repo)
}
