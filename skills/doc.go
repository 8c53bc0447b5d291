// Copyright (c) SkillFlow Authors.

/*
Package skills 维护技能注册表并把自由文本查询解析为候选技能。

# 核心类型

  - Descriptor: 技能的静态描述：名称、描述、参数表与处理器
  - Registry: flat 或分层（分组 → 技能）两种模式的只读注册表
  - Selector: 嵌入查询并在索引中检索，返回按距离排序的技能
  - Manifest: YAML 技能清单，handler 键在加载时解析到 HandlerTable

# 选择规则

flat 模式在单一索引中检索。分层模式先选出最接近的分组（默认 1 个），
再只在这些分组的成员中检索，技能不会越过它的分组被选中。
查询只嵌入一次，两级检索共用同一个向量。

没有候选时返回空切片而不是错误；调用方应把空结果当作"直接回答"
或"请用户澄清"处理。
*/
package skills
