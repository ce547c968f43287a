package ports

import "github.com/failsift/failsift/internal/domain"

// ClusterRequest is the body of a clustering service call: the failure
// batch, in the order index groups refer to.
type ClusterRequest struct {
	Failures []domain.FailureRecord `json:"failures"`
}

// ClusterGroup is one cluster as positions into the request batch.
type ClusterGroup struct {
	Indices []int `json:"indices"`
}

// ClusterResponse is the clustering service reply.
type ClusterResponse struct {
	Clusters []ClusterGroup `json:"clusters"`
}
