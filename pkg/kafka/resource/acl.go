package resource

import (
	"fmt"
	"slices"
	"strings"

	"github.com/edgeflare/kafkaform/pkg/kafka/addr"
	"gopkg.in/yaml.v3"
)

type AclResourceType string

const (
	AclResourceTopic           AclResourceType = "Topic"
	AclResourceGroup           AclResourceType = "Group"
	AclResourceCluster         AclResourceType = "Cluster"
	AclResourceTransactionalID AclResourceType = "TransactionalId"
	AclResourceDelegationToken AclResourceType = "DelegationToken"
)

var aclResourceTypes = []AclResourceType{
	AclResourceTopic, AclResourceGroup, AclResourceCluster, AclResourceTransactionalID, AclResourceDelegationToken,
}

type AclPatternType string

const (
	AclPatternLiteral  AclPatternType = "Literal"
	AclPatternPrefixed AclPatternType = "Prefixed"
)

var aclPatternTypes = []AclPatternType{AclPatternLiteral, AclPatternPrefixed}

type PrincipalType string

const (
	PrincipalUser  PrincipalType = "User"
	PrincipalGroup PrincipalType = "Group"
)

var principalTypes = []PrincipalType{PrincipalUser, PrincipalGroup}

type AclOperation string

const (
	AclOperationRead            AclOperation = "Read"
	AclOperationWrite           AclOperation = "Write"
	AclOperationCreate          AclOperation = "Create"
	AclOperationDelete          AclOperation = "Delete"
	AclOperationAlter           AclOperation = "Alter"
	AclOperationDescribe        AclOperation = "Describe"
	AclOperationClusterAction   AclOperation = "ClusterAction"
	AclOperationDescribeConfigs AclOperation = "DescribeConfigs"
	AclOperationAlterConfigs    AclOperation = "AlterConfigs"
	AclOperationIdempotentWrite AclOperation = "IdempotentWrite"
	AclOperationAll             AclOperation = "All"
)

var aclOperations = []AclOperation{
	AclOperationRead, AclOperationWrite, AclOperationCreate, AclOperationDelete, AclOperationAlter,
	AclOperationDescribe, AclOperationClusterAction, AclOperationDescribeConfigs, AclOperationAlterConfigs,
	AclOperationIdempotentWrite, AclOperationAll,
}

type AclPermission string

const (
	AclPermissionAllow AclPermission = "Allow"
	AclPermissionDeny  AclPermission = "Deny"
)

var aclPermissions = []AclPermission{AclPermissionAllow, AclPermissionDeny}

type Principal struct {
	Type PrincipalType `yaml:"type" json:"type"`
	Name string        `yaml:"name" json:"name"`
}

// String renders the principal the way Kafka does, e.g. "User:alice".
func (p Principal) String() string {
	return string(p.Type) + ":" + p.Name
}

// Acl is a single access control binding. ACLs are replaced, never patched,
// so the struct is comparable and == is its semantic equality.
type Acl struct {
	ResourceType AclResourceType `yaml:"resource_type" json:"resource_type"`
	ResourceName string          `yaml:"resource_name" json:"resource_name"`
	PatternType  AclPatternType  `yaml:"pattern_type" json:"pattern_type"`
	Principal    Principal       `yaml:"principal" json:"principal"`
	Host         string          `yaml:"host" json:"host"`
	Operation    AclOperation    `yaml:"operation" json:"operation"`
	Permission   AclPermission   `yaml:"permission" json:"permission"`
}

// DefaultAcl is the template used for skeletons.
func DefaultAcl() Acl {
	return Acl{
		ResourceType: AclResourceTopic,
		PatternType:  AclPatternLiteral,
		Principal:    Principal{Type: PrincipalUser},
		Host:         "*",
		Operation:    AclOperationAll,
		Permission:   AclPermissionAllow,
	}
}

func (Acl) Kind() addr.Kind { return addr.KindAcl }

func (Acl) isResource() {}

func (a Acl) Equal(o Acl) bool { return a == o }

func (a Acl) validate() error {
	checks := []struct {
		field string
		ok    bool
		value string
	}{
		{"resource_type", slices.Contains(aclResourceTypes, a.ResourceType), string(a.ResourceType)},
		{"pattern_type", slices.Contains(aclPatternTypes, a.PatternType), string(a.PatternType)},
		{"principal.type", slices.Contains(principalTypes, a.Principal.Type), string(a.Principal.Type)},
		{"operation", slices.Contains(aclOperations, a.Operation), string(a.Operation)},
		{"permission", slices.Contains(aclPermissions, a.Permission), string(a.Permission)},
	}
	for _, c := range checks {
		if !c.ok {
			return &DeserializeError{Field: c.field, Err: fmt.Errorf("unknown variant %q", c.value)}
		}
	}
	return nil
}

func decodeAcl(data []byte) (Acl, error) {
	root, err := parseDocument(data)
	if err != nil {
		return Acl{}, err
	}

	a := Acl{Host: "*"}
	err = decodeFields("", root, []field{
		{name: "resource_type", required: true, decode: func(p string, n *yaml.Node) error {
			return enum(p, n, aclResourceTypes, &a.ResourceType)
		}},
		{name: "resource_name", required: true, decode: func(p string, n *yaml.Node) error {
			return str(p, n, &a.ResourceName)
		}},
		{name: "pattern_type", required: true, decode: func(p string, n *yaml.Node) error {
			return enum(p, n, aclPatternTypes, &a.PatternType)
		}},
		{name: "principal", required: true, decode: func(p string, n *yaml.Node) error {
			return decodeFields(p+".", n, []field{
				{name: "type", required: true, decode: func(p string, n *yaml.Node) error {
					return enum(p, n, principalTypes, &a.Principal.Type)
				}},
				{name: "name", required: true, decode: func(p string, n *yaml.Node) error {
					return str(p, n, &a.Principal.Name)
				}},
			})
		}},
		{name: "host", decode: func(p string, n *yaml.Node) error {
			return str(p, n, &a.Host)
		}},
		{name: "operation", required: true, decode: func(p string, n *yaml.Node) error {
			return enum(p, n, aclOperations, &a.Operation)
		}},
		{name: "permission", required: true, decode: func(p string, n *yaml.Node) error {
			return enum(p, n, aclPermissions, &a.Permission)
		}},
	})
	if err != nil {
		return Acl{}, err
	}
	return a, nil
}

// enum decodes a string scalar that must be one of allowed.
func enum[T ~string](path string, n *yaml.Node, allowed []T, out *T) error {
	var s string
	if err := str(path, n, &s); err != nil {
		return err
	}
	if !slices.Contains(allowed, T(s)) {
		names := make([]string, len(allowed))
		for i, v := range allowed {
			names[i] = string(v)
		}
		return nodeError(path, n, fmt.Errorf("unknown variant %q, expected one of %s", s, strings.Join(names, ", ")))
	}
	*out = T(s)
	return nil
}
