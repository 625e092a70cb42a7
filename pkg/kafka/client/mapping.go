package client

import (
	"github.com/IBM/sarama"
	"github.com/edgeflare/kafkaform/pkg/kafka/resource"
)

var aclResourceTypes = map[resource.AclResourceType]sarama.AclResourceType{
	resource.AclResourceTopic:           sarama.AclResourceTopic,
	resource.AclResourceGroup:           sarama.AclResourceGroup,
	resource.AclResourceCluster:         sarama.AclResourceCluster,
	resource.AclResourceTransactionalID: sarama.AclResourceTransactionalID,
	resource.AclResourceDelegationToken: sarama.AclResourceDelegationToken,
}

var aclPatternTypes = map[resource.AclPatternType]sarama.AclResourcePatternType{
	resource.AclPatternLiteral:  sarama.AclPatternLiteral,
	resource.AclPatternPrefixed: sarama.AclPatternPrefixed,
}

var aclOperations = map[resource.AclOperation]sarama.AclOperation{
	resource.AclOperationRead:            sarama.AclOperationRead,
	resource.AclOperationWrite:           sarama.AclOperationWrite,
	resource.AclOperationCreate:          sarama.AclOperationCreate,
	resource.AclOperationDelete:          sarama.AclOperationDelete,
	resource.AclOperationAlter:           sarama.AclOperationAlter,
	resource.AclOperationDescribe:        sarama.AclOperationDescribe,
	resource.AclOperationClusterAction:   sarama.AclOperationClusterAction,
	resource.AclOperationDescribeConfigs: sarama.AclOperationDescribeConfigs,
	resource.AclOperationAlterConfigs:    sarama.AclOperationAlterConfigs,
	resource.AclOperationIdempotentWrite: sarama.AclOperationIdempotentWrite,
	resource.AclOperationAll:             sarama.AclOperationAll,
}

var aclPermissions = map[resource.AclPermission]sarama.AclPermissionType{
	resource.AclPermissionAllow: sarama.AclPermissionAllow,
	resource.AclPermissionDeny:  sarama.AclPermissionDeny,
}

var quotaEntityTypes = map[resource.EntityType]sarama.QuotaEntityType{
	resource.EntityUser:     sarama.QuotaEntityUser,
	resource.EntityClientID: sarama.QuotaEntityClientID,
	resource.EntityIP:       sarama.QuotaEntityIP,
}

// ToSaramaAcl splits an ACL into the sarama resource and binding.
func ToSaramaAcl(acl resource.Acl) (sarama.Resource, sarama.Acl) {
	return sarama.Resource{
			ResourceType:        aclResourceTypes[acl.ResourceType],
			ResourceName:        acl.ResourceName,
			ResourcePatternType: aclPatternTypes[acl.PatternType],
		}, sarama.Acl{
			Principal:      acl.Principal.String(),
			Host:           acl.Host,
			Operation:      aclOperations[acl.Operation],
			PermissionType: aclPermissions[acl.Permission],
		}
}

// ToSaramaAclFilter matches exactly the given ACL.
func ToSaramaAclFilter(acl resource.Acl) sarama.AclFilter {
	res, binding := ToSaramaAcl(acl)
	return sarama.AclFilter{
		ResourceType:              res.ResourceType,
		ResourceName:              &res.ResourceName,
		ResourcePatternTypeFilter: res.ResourcePatternType,
		Principal:                 &binding.Principal,
		Host:                      &binding.Host,
		Operation:                 binding.Operation,
		PermissionType:            binding.PermissionType,
	}
}

func ToSaramaQuotaEntity(entities []resource.QuotaEntity) []sarama.QuotaEntityComponent {
	out := make([]sarama.QuotaEntityComponent, 0, len(entities))
	for _, e := range entities {
		out = append(out, sarama.QuotaEntityComponent{
			EntityType: quotaEntityTypes[e.EntityType],
			MatchType:  sarama.QuotaMatchExact,
			Name:       e.Name,
		})
	}
	return out
}
