package testutils

import "github.com/l7mp/dcollections/pkg/document"

var (
	// TestSvc is a document used for testing.
	TestSvc = document.Document{
		"name":      "test-service",
		"namespace": "default",
		"spec": map[string]any{
			"selector": map[string]any{
				"app": "example",
			},
			"ports": []any{
				map[string]any{
					"protocol":   "TCP",
					"port":       int64(80),
					"targetPort": int64(8080),
				},
			},
			"type": "ClusterIP",
		},
	}

	// TestPod is a document used for testing.
	TestPod = document.Document{
		"name":      "test-pod",
		"namespace": "default",
		"labels": map[string]any{
			"app": "example",
		},
		"spec": map[string]any{
			"containers": []any{
				map[string]any{
					"name":  "nginx",
					"image": "nginx",
				},
			},
			"priority": int64(2),
		},
	}

	// TestDeployment is a document used for testing.
	TestDeployment = document.Document{
		"name":      "test-deployment",
		"namespace": "other",
		"spec": map[string]any{
			"replicas": int64(3),
			"selector": map[string]any{
				"app": "example",
			},
			"priority": int64(1),
		},
	}
)
